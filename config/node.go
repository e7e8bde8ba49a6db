package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// NodeConfig is the configuration for a single signer node process
// (cmd/node).
type NodeConfig struct {
	NodeIndex   int               `json:"nodeIndex"`   // this node's fixed index in [0, N)
	MaxSigners  int               `json:"maxSigners"`  // N
	MinSigners  int               `json:"minSigners"`  // M
	StoragePath string            `json:"storagePath"` // badger data directory
	KeyProvider KeyProviderConfig `json:"keyProvider"`
	Server      ServerConfig      `json:"server"`
	Timeouts    NodeTimeoutConfig `json:"timeouts"`
	Auth        AuthConfig        `json:"auth"`
	Peers       []PeerConfig      `json:"peers,omitempty"` // every other node in the roster, for transport-pubkey discovery
}

// PeerConfig is how a node reaches one other signer node's HTTP surface
// directly, independent of either aggregator's own SignerNode roster —
// needed because DKG round 2 moves ciphertext shares node-to-node, not
// through the address aggregator.
type PeerConfig struct {
	Index   int    `json:"index"`
	BaseURL string `json:"baseUrl"`
}

// KeyProviderConfig selects and configures the HSM backend.
type KeyProviderConfig struct {
	Type          string `json:"type"`                     // "plaintext" or "pkcs11"
	MasterSeedHex string `json:"masterSeedHex,omitempty"`  // plaintext backend only
	PKCS11Library string `json:"pkcs11Library,omitempty"`
	Slot          uint   `json:"slot,omitempty"`
	Pin           string `json:"pin,omitempty"` // optional for either backend; omit to start locked
	KeyLabel      string `json:"keyLabel,omitempty"`
}

// ServerConfig is the HTTP listener configuration shared by the node and
// both aggregators.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// NodeTimeoutConfig holds the per-phase timeouts a node enforces.
type NodeTimeoutConfig struct {
	DKGRound       time.Duration `json:"dkgRound"`       // default 30s
	SigningRound   time.Duration `json:"signingRound"`   // default 5s
	NonceHandleTTL time.Duration `json:"nonceHandleTTL"` // default 60s
	HSMCallTimeout time.Duration `json:"hsmCallTimeout"` // default 1s, HSM calls run 1-20ms
}

// AuthConfig controls the optional envelope-signing layer between the
// aggregators and nodes. Off by default, so a bare deployment over plain
// HTTP/TLS keeps working unmodified.
type AuthConfig struct {
	RequireSignatures bool   `json:"requireSignatures"`
	IdentityKeyPath   string `json:"identityKeyPath,omitempty"`
}

// DefaultNodeConfig returns a three-node, threshold-two development
// configuration with the plaintext HSM backend and signature auth disabled.
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		NodeIndex:   0,
		MaxSigners:  3,
		MinSigners:  2,
		StoragePath: "./data/node0",
		KeyProvider: KeyProviderConfig{
			Type:          "plaintext",
			MasterSeedHex: "0000000000000000000000000000000000000000000000000000000000000000",
			KeyLabel:      "node-master",
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 7000,
		},
		Timeouts: NodeTimeoutConfig{
			DKGRound:       30 * time.Second,
			SigningRound:   5 * time.Second,
			NonceHandleTTL: 60 * time.Second,
			HSMCallTimeout: time.Second,
		},
		Auth: AuthConfig{
			RequireSignatures: false,
		},
	}
}

// LoadNodeConfig reads a NodeConfig from a JSON file, falling back to
// DefaultNodeConfig if the file does not exist.
func LoadNodeConfig(path string) (NodeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultNodeConfig(), nil
		}
		return NodeConfig{}, fmt.Errorf("failed to read node config: %w", err)
	}

	cfg := DefaultNodeConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return NodeConfig{}, fmt.Errorf("failed to parse node config: %w", err)
	}
	return cfg, nil
}

// Validate checks the structural invariants required of a node
// configuration before the process starts serving requests.
func (c *NodeConfig) Validate() error {
	if c.NodeIndex < 0 || c.NodeIndex >= c.MaxSigners {
		return fmt.Errorf("nodeIndex %d out of range [0, %d)", c.NodeIndex, c.MaxSigners)
	}
	if c.MinSigners < 2 {
		return fmt.Errorf("minSigners must be >= 2, got %d", c.MinSigners)
	}
	if c.MinSigners > c.MaxSigners {
		return fmt.Errorf("minSigners %d exceeds maxSigners %d", c.MinSigners, c.MaxSigners)
	}
	if c.StoragePath == "" {
		return fmt.Errorf("storagePath must not be empty")
	}
	return nil
}
