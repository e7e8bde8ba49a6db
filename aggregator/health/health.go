// Package health implements the quorum probe both aggregator roles
// consult before driving a DKG or signing round: which nodes answer
// /health right now, and whether that's enough to proceed.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"

	"frostcustody/aggregator/nodeclient"
	"frostcustody/config"
	"frostcustody/logs"
)

// NodeStatus is one signer node's probe result.
type NodeStatus struct {
	Index   int    `json:"index"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Report is the quorum probe's externally visible result, §4.10's
// `{total, healthy, threshold, per_node_status}` plus the two derived
// capability flags every caller actually wants to branch on.
type Report struct {
	Total          int          `json:"total"`
	Healthy        int          `json:"healthy"`
	Threshold      int          `json:"threshold"`
	PerNodeStatus  []NodeStatus `json:"per_node_status"`
	SigningCapable bool         `json:"signing_capable"` // healthy >= threshold
	DKGCapable     bool         `json:"dkg_capable"`      // healthy == total; DKG needs the full roster
}

// Prober holds one Client per configured signer node, reused across
// probes rather than dialing fresh every call.
type Prober struct {
	clients   []*nodeclient.Client
	threshold int
}

func New(cfg config.AggregatorConfig) *Prober {
	clients := make([]*nodeclient.Client, 0, len(cfg.SignerNodes))
	for _, sn := range cfg.SignerNodes {
		clients = append(clients, nodeclient.New(sn.Index, sn.BaseURL, cfg.Timeouts.HealthCheck))
	}
	return &Prober{clients: clients, threshold: cfg.Threshold}
}

// Probe health-checks every configured node concurrently and returns the
// aggregate report.
func (p *Prober) Probe(ctx context.Context) Report {
	statuses := make([]NodeStatus, len(p.clients))
	var wg sync.WaitGroup
	for i, c := range p.clients {
		wg.Add(1)
		go func(i int, c *nodeclient.Client) {
			defer wg.Done()
			if _, err := c.Health(ctx); err != nil {
				statuses[i] = NodeStatus{Index: c.Index, Healthy: false, Error: err.Error()}
				return
			}
			statuses[i] = NodeStatus{Index: c.Index, Healthy: true}
		}(i, c)
	}
	wg.Wait()

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Index < statuses[j].Index })

	healthy := 0
	for _, s := range statuses {
		if s.Healthy {
			healthy++
		}
	}
	return Report{
		Total:          len(statuses),
		Healthy:        healthy,
		Threshold:      p.threshold,
		PerNodeStatus:  statuses,
		SigningCapable: healthy >= p.threshold,
		DKGCapable:     healthy == len(statuses),
	}
}

// HealthyIndices returns the node indices that answered the probe,
// ascending — the order the signing aggregator's deterministic quorum
// selection (§4.9 step 2) picks from.
func (r Report) HealthyIndices() []int {
	out := make([]int, 0, r.Healthy)
	for _, s := range r.PerNodeStatus {
		if s.Healthy {
			out = append(out, s.Index)
		}
	}
	return out
}

// Handler exposes Probe as a plain HTTP GET endpoint for operational use
// (load balancer health checks, manual inspection), separate from the
// signing/address aggregators' own probing before a round.
func (p *Prober) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := p.Probe(r.Context())
		w.Header().Set("Content-Type", "application/json")
		status := http.StatusOK
		if !report.SigningCapable {
			status = http.StatusServiceUnavailable
		}
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(report); err != nil {
			logs.Error("write health report: %v", err)
		}
	}
}
