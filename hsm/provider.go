// Package hsm abstracts the hardware (or software) key that seeds every
// deterministic random source in this service. A Provider never exposes
// key material; it only signs opaque labels, and the caller turns those
// signatures into ChaCha20 seeds via the rng package. Two backends exist:
// a plaintext provider for development and CI, and a PKCS#11 provider for
// real hardware security modules and USB tokens.
package hsm

import "errors"

var (
	// ErrLocked is returned by Sign when the provider requires a PIN that
	// has not yet been supplied via Unlock.
	ErrLocked = errors.New("hsm: provider is locked")
	ErrWrongPIN    = errors.New("hsm: PIN rejected by token")
	ErrKeyNotFound = errors.New("hsm: signing key not found")
)

// Provider is the HSM-backed signing key used to derive every deterministic
// randomness seed in the node. Implementations must make Sign
// deterministic for a fixed (key, label) pair — the whole DKG/signing
// recovery story rests on that.
type Provider interface {
	// Sign returns a deterministic signature over label, used only as
	// entropy — never verified as an actual signature by a peer.
	Sign(label []byte) ([]byte, error)

	// Unlock verifies pin and, if correct, retains it in memory so future
	// Sign calls succeed. Returns (true, nil) on a fresh unlock, (false,
	// nil) if the provider was already unlocked, and a non-nil error
	// (typically ErrWrongPIN) otherwise. Always (true, nil) for backends
	// that have no locked state.
	Unlock(pin string) (bool, error)

	// Lock returns the provider to a locked state. PKCS11Provider also
	// drops its retained PIN from memory; PlaintextProvider keeps its
	// configured PIN.
	Lock()

	// IsLocked reports whether Sign would currently fail with ErrLocked.
	IsLocked() bool

	// Description is a short, human-readable summary for logs and the
	// node's /health endpoint — never includes the PIN or key material.
	Description() string
}
