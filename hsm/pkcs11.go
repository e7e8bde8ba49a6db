package hsm

import (
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/miekg/pkcs11"
)

// PKCS11Provider drives any PKCS#11-compliant device — USB tokens
// (YubiKey, Nitrokey), enterprise HSMs, cloud HSMs, or SoftHSM for local
// testing — through a single ECDSA key identified by label. Switching
// hardware is a config change (library path + slot + label), never a code
// change.
//
// SoftHSM-class devices don't support the combined ECDSA+SHA256 mechanism,
// so Sign hashes the label itself and signs the 32-byte digest with plain
// CKM_ECDSA. Determinism rests on the token producing RFC6979-deterministic
// ECDSA signatures for a fixed (key, digest) pair, true of real PKCS#11
// ECDSA on supporting devices and trivially true in the plaintext backend.
type PKCS11Provider struct {
	mu sync.Mutex

	ctx      *pkcs11.Ctx
	slot     uint
	keyLabel string

	pin    string
	locked bool
}

// NewPKCS11Provider loads the PKCS#11 library at libPath, initializes it,
// and binds to the given slot and key label. If pin is non-empty the
// provider starts unlocked; otherwise it starts locked and Unlock must be
// called with the correct PIN before Sign will succeed.
func NewPKCS11Provider(libPath string, slot uint, pin, keyLabel string) (*PKCS11Provider, error) {
	ctx := pkcs11.New(libPath)
	if ctx == nil {
		return nil, fmt.Errorf("hsm: failed to load PKCS#11 library %q", libPath)
	}
	if err := ctx.Initialize(); err != nil {
		return nil, fmt.Errorf("hsm: initialize PKCS#11: %w", err)
	}
	return &PKCS11Provider{
		ctx:      ctx,
		slot:     slot,
		keyLabel: keyLabel,
		pin:      pin,
		locked:   pin == "",
	}, nil
}

// Close releases the underlying PKCS#11 context. Safe to call once at
// process shutdown; not required between Sign calls.
func (p *PKCS11Provider) Close() {
	p.ctx.Finalize()
	p.ctx.Destroy()
}

func (p *PKCS11Provider) withSession(fn func(sh pkcs11.SessionHandle) error) error {
	sh, err := p.ctx.OpenSession(p.slot, pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		return fmt.Errorf("hsm: open PKCS#11 session: %w", err)
	}
	defer p.ctx.CloseSession(sh)

	if p.pin != "" {
		if err := p.ctx.Login(sh, pkcs11.CKU_USER, p.pin); err != nil {
			return fmt.Errorf("hsm: PKCS#11 login: %w", err)
		}
		defer p.ctx.Logout(sh)
	}

	return fn(sh)
}

func (p *PKCS11Provider) findKey(sh pkcs11.SessionHandle) (pkcs11.ObjectHandle, error) {
	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, p.keyLabel),
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PRIVATE_KEY),
	}
	if err := p.ctx.FindObjectsInit(sh, template); err != nil {
		return 0, fmt.Errorf("hsm: find objects init: %w", err)
	}
	defer p.ctx.FindObjectsFinal(sh)

	objs, _, err := p.ctx.FindObjects(sh, 1)
	if err != nil {
		return 0, fmt.Errorf("hsm: find objects: %w", err)
	}
	if len(objs) == 0 {
		return 0, fmt.Errorf("%w: label %q", ErrKeyNotFound, p.keyLabel)
	}
	return objs[0], nil
}

// Sign hashes label and signs the digest with the token's ECDSA key.
func (p *PKCS11Provider) Sign(label []byte) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.locked {
		return nil, ErrLocked
	}

	digest := sha256.Sum256(label)
	var sig []byte
	err := p.withSession(func(sh pkcs11.SessionHandle) error {
		key, err := p.findKey(sh)
		if err != nil {
			return err
		}
		if err := p.ctx.SignInit(sh, []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_ECDSA, nil)}, key); err != nil {
			return fmt.Errorf("hsm: sign init: %w", err)
		}
		s, err := p.ctx.Sign(sh, digest[:])
		if err != nil {
			return fmt.Errorf("hsm: sign: %w", err)
		}
		sig = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sig, nil
}

// Unlock tests pin by opening a real session and logging in. A successful
// login retains the PIN in memory (never written to disk) and unlocks the
// provider. Calling Unlock while already unlocked is a no-op.
func (p *PKCS11Provider) Unlock(pin string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.locked {
		return false, nil
	}

	sh, err := p.ctx.OpenSession(p.slot, pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		return false, fmt.Errorf("hsm: open PKCS#11 session: %w", err)
	}
	defer p.ctx.CloseSession(sh)

	if err := p.ctx.Login(sh, pkcs11.CKU_USER, pin); err != nil {
		return false, ErrWrongPIN
	}
	p.ctx.Logout(sh)

	p.pin = pin
	p.locked = false
	return true, nil
}

// Lock drops the retained PIN from memory and returns to the locked state.
func (p *PKCS11Provider) Lock() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pin = ""
	p.locked = true
}

func (p *PKCS11Provider) IsLocked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.locked
}

func (p *PKCS11Provider) Description() string {
	return fmt.Sprintf("PKCS#11 HSM (slot=%d, key=%s)", p.slot, p.keyLabel)
}
