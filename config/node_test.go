package config

import "testing"

func TestDefaultNodeConfig(t *testing.T) {
	cfg := DefaultNodeConfig()

	if cfg.MaxSigners != 3 {
		t.Errorf("MaxSigners = %d, want 3", cfg.MaxSigners)
	}
	if cfg.MinSigners != 2 {
		t.Errorf("MinSigners = %d, want 2", cfg.MinSigners)
	}
	if cfg.KeyProvider.Type != "plaintext" {
		t.Errorf("KeyProvider.Type = %q, want %q", cfg.KeyProvider.Type, "plaintext")
	}
	if cfg.Auth.RequireSignatures {
		t.Error("Auth.RequireSignatures should default to false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultNodeConfig() should validate, got %v", err)
	}
}

func TestNodeConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*NodeConfig)
		wantErr bool
	}{
		{"valid default", func(c *NodeConfig) {}, false},
		{"index out of range", func(c *NodeConfig) { c.NodeIndex = 5 }, true},
		{"negative index", func(c *NodeConfig) { c.NodeIndex = -1 }, true},
		{"min below floor", func(c *NodeConfig) { c.MinSigners = 1 }, true},
		{"min exceeds max", func(c *NodeConfig) { c.MinSigners = 4 }, true},
		{"empty storage path", func(c *NodeConfig) { c.StoragePath = "" }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultNodeConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadNodeConfigMissingFileReturnsDefault(t *testing.T) {
	cfg, err := LoadNodeConfig("/nonexistent/path/node.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxSigners != DefaultNodeConfig().MaxSigners {
		t.Errorf("expected default config, got %+v", cfg)
	}
}
