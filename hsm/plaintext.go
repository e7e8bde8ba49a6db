package hsm

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// PlaintextProvider signs labels with HMAC-SHA256 under a config-supplied
// master seed. It exists for development and CI, where a real HSM would be
// overkill, but still carries the same lock/PIN state machine
// PKCS11Provider does — otherwise spec scenarios that start a node locked
// and require a PIN before it signs would be untestable outside real
// PKCS#11 hardware.
type PlaintextProvider struct {
	mu sync.Mutex

	masterSeed []byte
	pin        string
	locked     bool
}

// NewPlaintextProvider builds a provider from a raw seed. The seed should
// be at least 32 bytes of real entropy in any deployment that isn't purely
// local development. If pin is non-empty the provider starts unlocked;
// otherwise it starts locked and Unlock must be called with the correct
// PIN before Sign will succeed.
func NewPlaintextProvider(masterSeed []byte, pin string) *PlaintextProvider {
	seed := make([]byte, len(masterSeed))
	copy(seed, masterSeed)
	return &PlaintextProvider{masterSeed: seed, pin: pin, locked: pin == ""}
}

// NewPlaintextProviderFromHex decodes a hex-encoded master seed, the form
// KeyProviderConfig.MasterSeedHex carries in configuration files.
func NewPlaintextProviderFromHex(hexSeed, pin string) (*PlaintextProvider, error) {
	seed, err := hex.DecodeString(hexSeed)
	if err != nil {
		return nil, fmt.Errorf("hsm: decode master seed hex: %w", err)
	}
	return NewPlaintextProvider(seed, pin), nil
}

func (p *PlaintextProvider) Sign(label []byte) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.locked {
		return nil, ErrLocked
	}

	mac := hmac.New(sha256.New, p.masterSeed)
	mac.Write(label)
	return mac.Sum(nil), nil
}

// Unlock compares pin against the PIN this provider was configured with
// in constant time. A successful match retains the PIN in memory (never
// written to disk) and unlocks the provider. Calling Unlock while already
// unlocked is a no-op, mirroring PKCS11Provider.
func (p *PlaintextProvider) Unlock(pin string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.locked {
		return false, nil
	}
	if !hmac.Equal([]byte(pin), []byte(p.pin)) {
		return false, ErrWrongPIN
	}
	p.locked = false
	return true, nil
}

// Lock returns to the locked state. The configured PIN is retained (unlike
// PKCS11Provider, which drops it) since there is no external device to
// re-authenticate against; only Sign consults p.locked.
func (p *PlaintextProvider) Lock() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locked = true
}

func (p *PlaintextProvider) IsLocked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.locked
}

func (p *PlaintextProvider) Description() string {
	n := len(p.masterSeed)
	if n > 4 {
		n = 4
	}
	return fmt.Sprintf("plaintext seed (%s...)", hex.EncodeToString(p.masterSeed[:n]))
}
