package config

import "testing"

func TestDefaultAggregatorConfig(t *testing.T) {
	cfg := DefaultAggregatorConfig()

	if len(cfg.SignerNodes) != 3 {
		t.Errorf("SignerNodes count = %d, want 3", len(cfg.SignerNodes))
	}
	if cfg.Threshold != 2 {
		t.Errorf("Threshold = %d, want 2", cfg.Threshold)
	}
	if cfg.Retry.MaxAlternateSelections != 1 {
		t.Errorf("Retry.MaxAlternateSelections = %d, want 1", cfg.Retry.MaxAlternateSelections)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultAggregatorConfig() should validate, got %v", err)
	}
}

func TestAggregatorConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*AggregatorConfig)
		wantErr bool
	}{
		{"valid default", func(c *AggregatorConfig) {}, false},
		{"empty roster", func(c *AggregatorConfig) { c.SignerNodes = nil }, true},
		{"threshold too low", func(c *AggregatorConfig) { c.Threshold = 1 }, true},
		{"threshold exceeds roster", func(c *AggregatorConfig) { c.Threshold = 10 }, true},
		{"duplicate index", func(c *AggregatorConfig) {
			c.SignerNodes = append(c.SignerNodes, SignerNode{Index: 0, BaseURL: "http://x"})
		}, true},
		{"empty base url", func(c *AggregatorConfig) { c.SignerNodes[0].BaseURL = "" }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultAggregatorConfig()
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
