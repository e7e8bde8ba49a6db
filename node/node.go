// Package node implements the signer node's HTTP surface: the process that
// holds one (of N) DKG-derived signing share per passphrase behind an HSM
// and does nothing else. Every cryptographic decision a node makes is
// local — it never calls out to another node except to fetch a peer's
// transport public key, and never calls an aggregator.
package node

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"frostcustody/apierr"
	"frostcustody/config"
	"frostcustody/frost/core/curve"
	ecdsamath "frostcustody/frost/core/ecdsa"
	"frostcustody/frost/security"
	"frostcustody/hsm"
	"frostcustody/logs"
	"frostcustody/rng"
	"frostcustody/store"
)

// Node wires the HSM, the encrypted share store, and this process's
// derived transport/Paillier identities together behind the HTTP handlers
// in this package.
type Node struct {
	cfg      config.NodeConfig
	provider hsm.Provider
	store    *store.Manager
	sealer   *handleSealer

	transportPriv []byte
	transportPub  []byte

	httpClient *http.Client

	peerMu   sync.Mutex
	peerPubs map[int][]byte // peer node index -> transport pubkey, fetched lazily

	paillierMu  sync.Mutex
	paillierKey *ecdsamath.PaillierPrivateKey // derived lazily, cached for the process lifetime

	dkg dkgRuns
}

// New builds a Node from its already-loaded configuration and HSM
// provider, opening (or creating) its encrypted share store and deriving
// its long-lived transport identity.
func New(cfg config.NodeConfig, provider hsm.Provider) (*Node, error) {
	mgr, err := store.Open(cfg.StoragePath, provider, cfg.NodeIndex)
	if err != nil {
		return nil, fmt.Errorf("node: open store: %w", err)
	}

	sealer, err := newHandleSealer()
	if err != nil {
		return nil, fmt.Errorf("node: init handle sealer: %w", err)
	}

	n := &Node{
		cfg:        cfg,
		provider:   provider,
		store:      mgr,
		sealer:     sealer,
		httpClient: &http.Client{Timeout: cfg.Timeouts.DKGRound},
		peerPubs:   make(map[int][]byte),
	}
	n.dkg.runs = make(map[string]*dkgRunState)

	if !provider.IsLocked() {
		if err := n.deriveTransportKey(); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// deriveTransportKey (re)computes this node's secp256k1 ECIES transport
// identity from the HSM. Called once at startup if already unlocked, and
// again from the unlock handler once a PIN is supplied.
func (n *Node) deriveTransportKey() error {
	label := []byte(fmt.Sprintf("transport/%d", n.cfg.NodeIndex))
	sig, err := n.provider.Sign(label)
	if err != nil {
		return fmt.Errorf("node: sign transport label: %w", err)
	}
	priv, pub, err := security.DeriveTransportKey(sig)
	if err != nil {
		return err
	}
	n.transportPriv = priv
	n.transportPub = pub
	return nil
}

// TransportPubKey returns this node's compressed secp256k1 transport
// public key, deriving it first if the HSM was locked at startup.
func (n *Node) TransportPubKey() ([]byte, error) {
	if n.transportPub == nil {
		if err := n.deriveTransportKey(); err != nil {
			return nil, err
		}
	}
	return n.transportPub, nil
}

// peerTransportPubKey returns peerIndex's transport public key, fetching
// it over HTTP and caching the result on first use. Peers do not rotate
// their transport identity, so caching for the process lifetime is safe.
func (n *Node) peerTransportPubKey(peerIndex int) ([]byte, error) {
	n.peerMu.Lock()
	if pub, ok := n.peerPubs[peerIndex]; ok {
		n.peerMu.Unlock()
		return pub, nil
	}
	n.peerMu.Unlock()

	var baseURL string
	for _, p := range n.cfg.Peers {
		if p.Index == peerIndex {
			baseURL = p.BaseURL
			break
		}
	}
	if baseURL == "" {
		return nil, fmt.Errorf("node: no configured peer for index %d", peerIndex)
	}

	resp, err := n.httpClient.Get(baseURL + "/api/transport/pubkey")
	if err != nil {
		return nil, fmt.Errorf("node: fetch peer %d transport pubkey: %w", peerIndex, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("node: peer %d transport pubkey request returned %d", peerIndex, resp.StatusCode)
	}
	var body struct {
		TransportPubKey string `json:"transportPubKey"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("node: decode peer %d transport pubkey response: %w", peerIndex, err)
	}
	pub, err := hexDecode(body.TransportPubKey)
	if err != nil {
		return nil, fmt.Errorf("node: decode peer %d transport pubkey: %w", peerIndex, err)
	}

	n.peerMu.Lock()
	n.peerPubs[peerIndex] = pub
	n.peerMu.Unlock()
	return pub, nil
}

// paillierPrivateKey lazily generates (once per process) and caches this
// node's Paillier keypair for threshold-ECDSA signing, seeded
// deterministically from the HSM so a restarted node regenerates the
// identical key rather than forking the ECDSA group's trust assumptions.
func (n *Node) paillierPrivateKey() (*ecdsamath.PaillierPrivateKey, error) {
	n.paillierMu.Lock()
	defer n.paillierMu.Unlock()
	if n.paillierKey != nil {
		return n.paillierKey, nil
	}
	label := []byte(fmt.Sprintf("ecdsa-paillier/%d", n.cfg.NodeIndex))
	sig, err := n.provider.Sign(label)
	if err != nil {
		return nil, fmt.Errorf("node: sign paillier label: %w", err)
	}
	seed := rng.Seed(sig, rng.PurposePaillierKey)
	key, err := ecdsamath.GeneratePaillierKey(rng.Reader(seed))
	if err != nil {
		return nil, fmt.Errorf("node: generate paillier key: %w", err)
	}
	n.paillierKey = key
	return key, nil
}

func (n *Node) curveGroup(tag curve.Tag) (curve.Group, error) {
	return curve.ForTag(tag)
}

// dkgContext binds a DKG run's Fiat-Shamir proofs of knowledge to the
// passphrase and curve, so the same polynomial dealt for two different
// passphrases never shares a challenge transcript.
func dkgContext(curveTag curve.Tag, passphrase string) []byte {
	return []byte(fmt.Sprintf("dkg:%s:%s", curveTag, passphrase))
}

// writeJSON is the node's one response helper, matching the
// encode-directly-to-the-writer idiom used throughout the HTTP examples
// this package is grounded on.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			logs.Error("write response: %v", err)
		}
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	logs.Warn("request failed: %v", err)
	apierr.WriteStatus(w, status, apierr.KindForStatus(status), err.Error())
}

// writeHSMError maps a failure from the HSM provider or the share store
// (which itself calls the HSM to decrypt on every read) onto the wire:
// a locked HSM always reports 423/KindResource, consistently, rather than
// the fallback/unclassified status every other store or provider failure
// gets.
func writeHSMError(w http.ResponseWriter, err error) {
	if errors.Is(err, hsm.ErrLocked) {
		writeError(w, http.StatusLocked, err)
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}

// ListenAndServe starts the node's HTTP server on cfg.Server.Host:Port.
func (n *Node) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", n.cfg.Server.Host, n.cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      n.Router(),
		ReadTimeout:  n.cfg.Timeouts.DKGRound,
		WriteTimeout: n.cfg.Timeouts.DKGRound,
	}
	logs.Info("listening on %s", addr)
	return srv.ListenAndServe()
}

func (n *Node) Close() error {
	return n.store.Close()
}
