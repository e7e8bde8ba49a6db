// Package address implements the address aggregator (§4.8): the stateless
// front door that maps a (chain, passphrase) request onto a curve, drives
// DKG across every signer node the first time a passphrase is seen, and
// hands the resulting group public key to a chain encoder.
package address

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"frostcustody/aggregator/health"
	"frostcustody/aggregator/nodeclient"
	"frostcustody/apierr"
	"frostcustody/config"
	"frostcustody/frost/runtime/session"
	"frostcustody/logs"
)

// chainCurve is the chain -> curve tag mapping §4.8 step 1 performs,
// derived from each chain's own signature scheme rather than configured
// per deployment, since a chain's curve is a property of the chain
// itself, not an operator choice.
var chainCurve = map[string]string{
	"btc": "schnorr-secp256k1",
	"eth": "ecdsa-secp256k1",
	"sol": "ed25519",
}

// Aggregator is the address aggregator's server-side state: a node
// client per configured signer and the passphrase gate that deduplicates
// concurrent DKG requests for the same (curve, passphrase).
type Aggregator struct {
	cfg     config.AggregatorConfig
	clients []*nodeclient.Client
	gate    *session.PassphraseGate
	prober  *health.Prober
}

func New(cfg config.AggregatorConfig) *Aggregator {
	clients := make([]*nodeclient.Client, 0, len(cfg.SignerNodes))
	for _, sn := range cfg.SignerNodes {
		clients = append(clients, nodeclient.New(sn.Index, sn.BaseURL, cfg.Timeouts.DKGRound))
	}
	return &Aggregator{cfg: cfg, clients: clients, gate: session.NewPassphraseGate(), prober: health.New(cfg)}
}

type generateRequest struct {
	Chain      string `json:"chain"`
	Passphrase string `json:"passphrase"`
}

type generateResponse struct {
	Address    string `json:"address"`
	PublicKey  string `json:"public_key"`
	Curve      string `json:"curve"`
	Chain      string `json:"chain"`
	Passphrase string `json:"passphrase"`
}

// Handler serves POST /api/address/generate.
func (a *Aggregator) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apierr.Write(w, apierr.New(apierr.KindInput, "malformed request body"))
			return
		}
		if req.Chain == "" || req.Passphrase == "" {
			apierr.Write(w, apierr.New(apierr.KindInput, "chain and passphrase are required"))
			return
		}

		resp, err := a.Generate(r.Context(), req.Chain, req.Passphrase)
		if err != nil {
			apierr.Write(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// Generate runs §4.8's algorithm end to end and returns the wire response.
func (a *Aggregator) Generate(ctx context.Context, chain, passphrase string) (generateResponse, error) {
	curveTag, ok := chainCurve[chain]
	if !ok {
		return generateResponse{}, apierr.New(apierr.KindInput, fmt.Sprintf("unsupported chain %q", chain))
	}
	encoder, err := EncoderFor(chain)
	if err != nil {
		return generateResponse{}, apierr.Wrap(apierr.KindInput, "no chain encoder registered", err)
	}

	groupPubHex, found, err := a.anyNodeGroupPubkey(ctx, curveTag, passphrase)
	if err != nil {
		return generateResponse{}, err
	}
	if !found {
		// DKG orchestration is atomic from the caller's view: concurrent
		// requests for the same (curve, passphrase) dedupe onto one
		// singleflight call.
		key := curveTag + ":" + passphrase
		v, err, _ := a.gate.Do(key, func() (interface{}, error) {
			return a.runDKG(ctx, curveTag, passphrase)
		})
		if err != nil {
			return generateResponse{}, err
		}
		groupPubHex = v.(string)
	}

	groupPub, err := hex.DecodeString(groupPubHex)
	if err != nil {
		return generateResponse{}, apierr.Wrap(apierr.KindProtocol, "malformed group public key", err)
	}
	addr, err := encoder.Encode(groupPub)
	if err != nil {
		return generateResponse{}, apierr.Wrap(apierr.KindProtocol, "chain encoder failed", err)
	}

	return generateResponse{
		Address:    addr,
		PublicKey:  groupPubHex,
		Curve:      curveTag,
		Chain:      chain,
		Passphrase: passphrase,
	}, nil
}

// anyNodeGroupPubkey asks every configured node in turn for an already-
// finalized group public key, stopping at the first one that has it.
func (a *Aggregator) anyNodeGroupPubkey(ctx context.Context, curveTag, passphrase string) (string, bool, error) {
	for _, c := range a.clients {
		pub, found, err := c.GroupPubkey(ctx, curveTag, passphrase)
		if err != nil {
			logs.Warn("address: node %d pubkey lookup failed: %v", c.Index, err)
			continue
		}
		if found {
			return pub, true, nil
		}
	}
	return "", false, nil
}

// runDKG drives round1 -> round2 -> finalize across the full N-node
// roster, per §4.8 step 3. DKG requires every node, never just the
// threshold, since a node that sat out would hold no share at all.
func (a *Aggregator) runDKG(ctx context.Context, curveTag, passphrase string) (interface{}, error) {
	sess := session.NewDKGSession(session.DKGSessionParams{Passphrase: passphrase, Curve: curveTag, N: len(a.clients)})
	defer sess.Close()

	if err := sess.Start(); err != nil {
		return nil, apierr.Wrap(apierr.KindState, "dkg session start failed", err)
	}

	type round1Result struct {
		id  int
		pkg string
		err error
	}
	results := make(chan round1Result, len(a.clients))
	for _, c := range a.clients {
		go func(c *nodeclient.Client) {
			resp, err := c.DKGRound1(ctx, curveTag, passphrase)
			results <- round1Result{id: c.Index + 1, pkg: resp.Round1Package, err: err}
		}(c)
	}
	for range a.clients {
		res := <-results
		if res.err != nil {
			sess.MarkFailed()
			return nil, apierr.Wrap(apierr.KindQuorum, "dkg round1 failed", res.err)
		}
		if err := sess.AddRound1Package(res.id, []byte(res.pkg)); err != nil {
			sess.MarkFailed()
			return nil, apierr.Wrap(apierr.KindProtocol, "dkg round1 collection failed", err)
		}
	}
	if err := sess.TransitionToRound1Received(); err != nil {
		sess.MarkFailed()
		return nil, apierr.Wrap(apierr.KindProtocol, "dkg round1 roster incomplete", err)
	}
	if err := sess.TransitionToRound2Emitted(); err != nil {
		return nil, apierr.Wrap(apierr.KindState, "dkg phase transition failed", err)
	}

	round1Packages := make([]nodeclient.IDPackage, 0, len(a.clients))
	for _, p := range sess.Round1PackagesOrdered() {
		round1Packages = append(round1Packages, nodeclient.IDPackage{ID: p.ID, Pkg: string(p.Payload)})
	}

	type round2Result struct {
		id   int
		pkgs []nodeclient.IDPackage
		err  error
	}
	r2results := make(chan round2Result, len(a.clients))
	for _, c := range a.clients {
		go func(c *nodeclient.Client) {
			resp, err := c.DKGRound2(ctx, curveTag, passphrase, round1Packages)
			r2results <- round2Result{id: c.Index + 1, pkgs: resp.Round2Packages, err: err}
		}(c)
	}
	for range a.clients {
		res := <-r2results
		if res.err != nil {
			sess.MarkFailed()
			return nil, apierr.Wrap(apierr.KindQuorum, "dkg round2 failed", res.err)
		}
		toIDs := make([]int, 0, len(res.pkgs))
		payloads := make([][]byte, 0, len(res.pkgs))
		for _, p := range res.pkgs {
			toIDs = append(toIDs, p.ID)
			payloads = append(payloads, []byte(p.Pkg))
		}
		if err := sess.AddRound2Packages(res.id, toIDs, payloads); err != nil {
			sess.MarkFailed()
			return nil, apierr.Wrap(apierr.KindProtocol, "dkg round2 collection failed", err)
		}
	}
	if err := sess.TransitionToRound2Received(); err != nil {
		sess.MarkFailed()
		return nil, apierr.Wrap(apierr.KindProtocol, "dkg round2 incomplete", err)
	}

	type finalizeResult struct {
		id   int
		resp nodeclient.DKGFinalizeResponse
		err  error
	}
	fresults := make(chan finalizeResult, len(a.clients))
	for _, c := range a.clients {
		go func(c *nodeclient.Client) {
			receiverID := c.Index + 1
			packages := make([]nodeclient.IDPackage, 0)
			for _, p := range sess.PackagesForReceiver(receiverID) {
				packages = append(packages, nodeclient.IDPackage{ID: p.ID, Pkg: string(p.Payload)})
			}
			resp, err := c.DKGFinalize(ctx, curveTag, passphrase, packages)
			fresults <- finalizeResult{id: receiverID, resp: resp, err: err}
		}(c)
	}
	var groupPubkey string
	verifyingShares := make(map[int][]byte, len(a.clients))
	for range a.clients {
		res := <-fresults
		if res.err != nil {
			sess.MarkFailed()
			return nil, apierr.Wrap(apierr.KindQuorum, "dkg finalize failed", res.err)
		}
		groupPubkey = res.resp.GroupPubkey
		verifyingShares[res.id] = []byte(res.resp.VerifyingShare)
	}

	if err := sess.TransitionToFinalized([]byte(groupPubkey), verifyingShares); err != nil {
		return nil, apierr.Wrap(apierr.KindState, "dkg finalize transition failed", err)
	}

	return groupPubkey, nil
}
