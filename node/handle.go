// Handle sealing: the node keeps no server-side state between a signing
// round1 and round2 call. Everything round2 needs is sealed into an opaque
// AEAD blob returned from round1 and echoed back by the caller, under a key
// that exists only in this process's memory and never touches disk or the
// HSM — a restart invalidates every outstanding handle, which is the
// correct failure mode (the caller just starts the signing round over).
package node

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

func encodeHandle(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeHandle(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// handleKey is generated once per process and never persisted. used
// tracks every nonce_handle that has already been consumed by a round2
// call, so a handle can be unsealed at most once no matter how many times
// the caller re-sends it.
type handleSealer struct {
	key []byte

	mu   sync.Mutex
	used map[string]struct{}
}

func newHandleSealer() (*handleSealer, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("node: generate handle key: %w", err)
	}
	return &handleSealer{key: key, used: make(map[string]struct{})}, nil
}

// consumeOnce marks handle used and reports whether this call is the
// first to do so. A node keeps no other record of an in-flight signing
// round, so this is the only place a replayed nonce_handle — whether
// resent verbatim or resent alongside a different all_commitments set —
// gets rejected instead of silently re-signing under the same (d, e)
// nonce pair a second time.
func (s *handleSealer) consumeOnce(handle string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.used[handle]; seen {
		return false
	}
	s.used[handle] = struct{}{}
	return true
}

// seal AEAD-encrypts payload (marshaled as JSON) with kind bound in as
// associated data, so a nonce_handle can never be replayed as an
// ecdsa_handle or vice versa.
func (s *handleSealer) seal(kind string, payload any) (string, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("node: marshal handle: %w", err)
	}
	aead, err := chacha20poly1305.New(s.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("node: generate handle nonce: %w", err)
	}
	sealed := aead.Seal(nil, nonce, plaintext, []byte(kind))
	out := append(nonce, sealed...)
	return encodeHandle(out), nil
}

func (s *handleSealer) unseal(kind, handle string, out any) error {
	raw, err := decodeHandle(handle)
	if err != nil {
		return fmt.Errorf("node: decode handle: %w", err)
	}
	aead, err := chacha20poly1305.New(s.key)
	if err != nil {
		return err
	}
	nonceSize := aead.NonceSize()
	if len(raw) < nonceSize {
		return fmt.Errorf("node: handle too short")
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(kind))
	if err != nil {
		return fmt.Errorf("node: handle does not decrypt under this process's key (stale, forged, or wrong kind): %w", err)
	}
	return json.Unmarshal(plaintext, out)
}

// NonceHandlePayload binds a signing round1's nonces to the exact request
// context round2 must match: passphrase, message hash, and participant,
// plus the creation time an expiry check is measured against.
type NonceHandlePayload struct {
	Curve         string `json:"curve"`
	Passphrase    string `json:"passphrase"`
	MessageHash   []byte `json:"messageHash"`
	ParticipantID int    `json:"participantId"`
	CreatedAtUnix int64  `json:"createdAtUnix"`
	D             []byte `json:"d"`
	E             []byte `json:"e"`
}

func (p *NonceHandlePayload) expired(ttl time.Duration) bool {
	return time.Since(time.Unix(p.CreatedAtUnix, 0)) > ttl
}

// ECDSAHandlePayload is the evolving state for one node's threshold-ECDSA
// signing job, round-tripped through every round2 sub-call (see
// ecdsa_handlers.go) since the node itself holds nothing across calls.
type ECDSAHandlePayload struct {
	Curve         string  `json:"curve"`
	Passphrase    string  `json:"passphrase"`
	MessageHash   []byte  `json:"messageHash"`
	ParticipantID int     `json:"participantId"`
	QuorumIDs     []int   `json:"quorumIds"`
	CreatedAtUnix int64   `json:"createdAtUnix"`
	Kappa         []byte  `json:"kappa"`
	Gamma         []byte  `json:"gamma"`
	DeltaAlphas   [][]byte `json:"deltaAlphas"`
	DeltaBetas    [][]byte `json:"deltaBetas"`
	SigmaAlphas   [][]byte `json:"sigmaAlphas"`
	SigmaBetas    [][]byte `json:"sigmaBetas"`
	SigmaShare    []byte   `json:"sigmaShare,omitempty"` // set by the combine phase, consumed by finalize
}

func (p *ECDSAHandlePayload) expired(ttl time.Duration) bool {
	return time.Since(time.Unix(p.CreatedAtUnix, 0)) > ttl
}
