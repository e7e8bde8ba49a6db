package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// SignerNode is one entry in an aggregator's static roster.
type SignerNode struct {
	Index   int    `json:"index"`
	BaseURL string `json:"baseUrl"`
}

// AggregatorConfig is shared by both aggregator roles (address and signing).
type AggregatorConfig struct {
	SignerNodes []SignerNode            `json:"signerNodes"`
	Threshold   int                     `json:"threshold"` // M
	Server      ServerConfig            `json:"server"`
	Timeouts    AggregatorTimeoutConfig `json:"timeouts"`
	Auth        AuthConfig              `json:"auth"`
	Retry       RetryConfig             `json:"retry"`
}

// AggregatorTimeoutConfig holds the per-call budgets an aggregator applies
// to its node RPCs.
type AggregatorTimeoutConfig struct {
	HealthCheck time.Duration `json:"healthCheck"` // default 2s
	DKGRound    time.Duration `json:"dkgRound"`    // default 30s, matches the node's own budget
	SignRound   time.Duration `json:"signRound"`   // default 5s
}

// RetryConfig is the signing aggregator's "one alternate selection, then
// fail" policy, made explicit and configurable rather than hardcoded.
type RetryConfig struct {
	MaxAlternateSelections int `json:"maxAlternateSelections"` // default 1
}

// DefaultAggregatorConfig returns a three-node, threshold-two development
// configuration pointing at the three local node ports DefaultNodeConfig's
// siblings would use.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		SignerNodes: []SignerNode{
			{Index: 0, BaseURL: "http://127.0.0.1:7000"},
			{Index: 1, BaseURL: "http://127.0.0.1:7001"},
			{Index: 2, BaseURL: "http://127.0.0.1:7002"},
		},
		Threshold: 2,
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8000,
		},
		Timeouts: AggregatorTimeoutConfig{
			HealthCheck: 2 * time.Second,
			DKGRound:    30 * time.Second,
			SignRound:   5 * time.Second,
		},
		Auth: AuthConfig{
			RequireSignatures: false,
		},
		Retry: RetryConfig{
			MaxAlternateSelections: 1,
		},
	}
}

// LoadAggregatorConfig reads an AggregatorConfig from a JSON file, falling
// back to DefaultAggregatorConfig if the file does not exist.
func LoadAggregatorConfig(path string) (AggregatorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultAggregatorConfig(), nil
		}
		return AggregatorConfig{}, fmt.Errorf("failed to read aggregator config: %w", err)
	}

	cfg := DefaultAggregatorConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return AggregatorConfig{}, fmt.Errorf("failed to parse aggregator config: %w", err)
	}
	return cfg, nil
}

// Validate checks the structural invariants an aggregator needs before
// accepting requests.
func (c *AggregatorConfig) Validate() error {
	n := len(c.SignerNodes)
	if n == 0 {
		return fmt.Errorf("signerNodes must not be empty")
	}
	if c.Threshold < 2 || c.Threshold > n {
		return fmt.Errorf("threshold %d must be in [2, %d]", c.Threshold, n)
	}
	seen := make(map[int]bool, n)
	for _, sn := range c.SignerNodes {
		if seen[sn.Index] {
			return fmt.Errorf("duplicate signer node index %d", sn.Index)
		}
		seen[sn.Index] = true
		if sn.BaseURL == "" {
			return fmt.Errorf("signer node %d has empty baseUrl", sn.Index)
		}
	}
	return nil
}
