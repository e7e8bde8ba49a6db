package address

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"frostcustody/config"
	"frostcustody/frost/core/curve"
)

// newFakeNode simulates one signer node's DKG surface: no existing group
// key, then a deterministic round1/round2/finalize sequence that always
// hands back groupPubHex as the finalized key, regardless of index.
func newFakeNode(index int, groupPubHex string) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/curve/ecdsa-secp256k1/pubkey", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error_kind": "input", "detail": "no group key for passphrase"})
	})
	mux.HandleFunc("/api/dkg/ecdsa-secp256k1/round1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"round1_package": fmt.Sprintf("r1-%d", index)})
	})
	mux.HandleFunc("/api/dkg/ecdsa-secp256k1/round2", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RoundOne []struct {
				ID int `json:"id"`
			} `json:"round1_packages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		packages := make([]map[string]any, 0, len(req.RoundOne))
		for _, p := range req.RoundOne {
			if p.ID == index+1 {
				continue
			}
			packages = append(packages, map[string]any{"id": p.ID, "pkg": fmt.Sprintf("r2-%d-%d", index+1, p.ID)})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"round2_packages": packages})
	})
	mux.HandleFunc("/api/dkg/ecdsa-secp256k1/finalize", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"group_pubkey":    groupPubHex,
			"verifying_share": fmt.Sprintf("vs-%d", index),
		})
	})
	return httptest.NewServer(mux)
}

func TestGenerateDrivesDKGOnFirstRequest(t *testing.T) {
	grp, err := curve.ForTag(curve.TagECDSASecp256k1)
	if err != nil {
		t.Fatalf("ForTag: %v", err)
	}
	pub := grp.ScalarBaseMult(big.NewInt(99))
	groupPubHex := hex.EncodeToString(grp.SerializePoint(pub))

	var servers []*httptest.Server
	var signerNodes []config.SignerNode
	for i := 0; i < 3; i++ {
		srv := newFakeNode(i, groupPubHex)
		servers = append(servers, srv)
		signerNodes = append(signerNodes, config.SignerNode{Index: i, BaseURL: srv.URL})
	}
	defer func() {
		for _, s := range servers {
			s.Close()
		}
	}()

	cfg := config.AggregatorConfig{
		SignerNodes: signerNodes,
		Threshold:   2,
		Timeouts:    config.AggregatorTimeoutConfig{DKGRound: 5 * time.Second, HealthCheck: time.Second, SignRound: time.Second},
	}
	agg := New(cfg)

	resp, err := agg.Generate(context.Background(), "eth", "vault-pass")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.PublicKey != groupPubHex {
		t.Fatalf("public_key = %s, want %s", resp.PublicKey, groupPubHex)
	}
	if resp.Curve != "ecdsa-secp256k1" {
		t.Fatalf("curve = %s, want ecdsa-secp256k1", resp.Curve)
	}
	if resp.Chain != "eth" {
		t.Fatalf("chain = %s, want eth", resp.Chain)
	}
	if resp.Address == "" {
		t.Fatal("expected a non-empty address")
	}
}

func TestGenerateUnsupportedChain(t *testing.T) {
	agg := New(config.AggregatorConfig{})
	if _, err := agg.Generate(context.Background(), "doge", "pass"); err == nil {
		t.Fatal("expected an error for an unsupported chain")
	}
}
