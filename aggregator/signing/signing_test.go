package signing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"frostcustody/config"
)

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(raw)
}

// fakeNodeOpts configures one fake signer node's behavior for a single
// test: whether /health reports healthy, and whether round1 fails (to
// exercise the retry-with-substitute path).
type fakeNodeOpts struct {
	healthy      bool
	failRound1   bool
	groupPubkey  string
}

func newFakeSigningNode(t *testing.T, index int, opts fakeNodeOpts) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if !opts.healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "nodeIndex": index, "locked": false})
	})
	mux.HandleFunc("/api/curve/schnorr-secp256k1/pubkey", func(w http.ResponseWriter, r *http.Request) {
		if opts.groupPubkey == "" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error_kind": "input", "detail": "no group key"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"groupPubkey": opts.groupPubkey})
	})
	mux.HandleFunc("/api/frost/schnorr-secp256k1/round1", func(w http.ResponseWriter, r *http.Request) {
		if opts.failRound1 {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error_kind": "resource", "detail": "round1 unavailable"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"commitments": map[string]any{
				"id": index + 1, "dx": "1", "dy": "2", "ex": "3", "ey": "4",
			},
			"nonce_handle": fmt.Sprintf("handle-%d", index),
		})
	})
	mux.HandleFunc("/api/frost/schnorr-secp256k1/round2", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"signature_share": fmt.Sprintf("%x", index+1),
			"id":              index + 1,
		})
	})
	mux.HandleFunc("/api/frost/schnorr-secp256k1/aggregate", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"signature": "aabbcc", "verified": true})
	})
	return httptest.NewServer(mux)
}

func testAggregatorConfig(servers []*httptest.Server) config.AggregatorConfig {
	signerNodes := make([]config.SignerNode, len(servers))
	for i, s := range servers {
		signerNodes[i] = config.SignerNode{Index: i, BaseURL: s.URL}
	}
	return config.AggregatorConfig{
		SignerNodes: signerNodes,
		Threshold:   2,
		Retry:       config.RetryConfig{MaxAlternateSelections: 1},
		Timeouts:    config.AggregatorTimeoutConfig{DKGRound: time.Second, HealthCheck: time.Second, SignRound: 2 * time.Second},
	}
}

func TestSignMessageSchnorrHappyPath(t *testing.T) {
	var servers []*httptest.Server
	for i := 0; i < 3; i++ {
		servers = append(servers, newFakeSigningNode(t, i, fakeNodeOpts{healthy: true}))
	}
	defer func() {
		for _, s := range servers {
			s.Close()
		}
	}()

	agg := New(testAggregatorConfig(servers))
	sig, verified, err := agg.SignMessage(context.Background(), "schnorr-secp256k1", "vault-pass", "deadbeef")
	if err != nil {
		t.Fatalf("SignMessage: %v", err)
	}
	if sig != "aabbcc" {
		t.Fatalf("signature = %s, want aabbcc", sig)
	}
	if !verified {
		t.Fatal("expected verified = true")
	}
}

func TestSignMessageInsufficientHealthyNodes(t *testing.T) {
	var servers []*httptest.Server
	for i := 0; i < 3; i++ {
		servers = append(servers, newFakeSigningNode(t, i, fakeNodeOpts{healthy: i == 0}))
	}
	defer func() {
		for _, s := range servers {
			s.Close()
		}
	}()

	agg := New(testAggregatorConfig(servers))
	if _, _, err := agg.SignMessage(context.Background(), "schnorr-secp256k1", "vault-pass", "deadbeef"); err == nil {
		t.Fatal("expected a quorum error with only one healthy node")
	}
}

func TestSignMessageSubstitutesFailingNode(t *testing.T) {
	var servers []*httptest.Server
	// Node 0 is healthy but fails round1; node 2 is the spare that should
	// get substituted in after node 0's failure.
	servers = append(servers, newFakeSigningNode(t, 0, fakeNodeOpts{healthy: true, failRound1: true}))
	servers = append(servers, newFakeSigningNode(t, 1, fakeNodeOpts{healthy: true}))
	servers = append(servers, newFakeSigningNode(t, 2, fakeNodeOpts{healthy: true}))
	defer func() {
		for _, s := range servers {
			s.Close()
		}
	}()

	agg := New(testAggregatorConfig(servers))
	sig, verified, err := agg.SignMessage(context.Background(), "schnorr-secp256k1", "vault-pass", "deadbeef")
	if err != nil {
		t.Fatalf("SignMessage: %v", err)
	}
	if sig != "aabbcc" || !verified {
		t.Fatalf("expected a successful signature after substitution, got sig=%s verified=%v", sig, verified)
	}
}

func TestSignMessageRejectsMalformedHex(t *testing.T) {
	agg := New(config.AggregatorConfig{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sign/message", jsonBody(t, map[string]string{
		"passphrase": "p", "message": "not-hex", "curve": "schnorr-secp256k1",
	}))
	agg.MessageHandler()(rec, req)
	if rec.Code == http.StatusOK {
		t.Fatalf("expected a non-200 status for malformed hex, got %d", rec.Code)
	}
}
