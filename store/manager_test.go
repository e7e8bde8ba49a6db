package store

import (
	"os"
	"testing"

	"frostcustody/frost/core/curve"
	"frostcustody/hsm"
)

func openTestManager(t *testing.T) (*Manager, hsm.Provider) {
	t.Helper()
	dir, err := os.MkdirTemp("", "sharestore")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	p := hsm.NewPlaintextProvider([]byte("test-master-seed"), "pin")
	m, err := Open(dir, p, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m, p
}

func sampleKeyPackage() *KeyPackage {
	return &KeyPackage{
		Curve:          curve.TagSchnorrSecp256k1,
		ParticipantID:  1,
		MinSigners:     2,
		MaxSigners:     3,
		SigningShare:   []byte{1, 2, 3, 4},
		GroupPublicKey: []byte{5, 6, 7, 8},
		VerifyingShares: map[int][]byte{
			1: {9, 9},
			2: {8, 8},
			3: {7, 7},
		},
	}
}

func TestStoreAndGetKeyPackage(t *testing.T) {
	m, _ := openTestManager(t)
	kp := sampleKeyPackage()

	if err := m.StoreKeyPackage(curve.TagSchnorrSecp256k1, "vault-1", kp); err != nil {
		t.Fatalf("StoreKeyPackage: %v", err)
	}

	got, err := m.GetKeyPackage(curve.TagSchnorrSecp256k1, "vault-1")
	if err != nil {
		t.Fatalf("GetKeyPackage: %v", err)
	}
	if got == nil {
		t.Fatal("expected a key package, got nil")
	}
	if got.ParticipantID != kp.ParticipantID || string(got.SigningShare) != string(kp.SigningShare) {
		t.Fatalf("round-tripped key package mismatch: %+v", got)
	}
}

func TestGetKeyPackage_Missing(t *testing.T) {
	m, _ := openTestManager(t)
	got, err := m.GetKeyPackage(curve.TagSchnorrSecp256k1, "never-stored")
	if err != nil {
		t.Fatalf("GetKeyPackage: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for a never-stored passphrase, got %+v", got)
	}
}

func TestKeyPackages_IsolatedByCurveAndPassphrase(t *testing.T) {
	m, _ := openTestManager(t)
	kp := sampleKeyPackage()

	if err := m.StoreKeyPackage(curve.TagSchnorrSecp256k1, "vault-1", kp); err != nil {
		t.Fatalf("StoreKeyPackage: %v", err)
	}

	if got, err := m.GetKeyPackage(curve.TagEd25519, "vault-1"); err != nil || got != nil {
		t.Fatalf("expected no key package under a different curve, got (%+v, %v)", got, err)
	}
	if got, err := m.GetKeyPackage(curve.TagSchnorrSecp256k1, "vault-2"); err != nil || got != nil {
		t.Fatalf("expected no key package under a different passphrase, got (%+v, %v)", got, err)
	}
}

func TestStoreAndGetPublicKeyPackage(t *testing.T) {
	m, _ := openTestManager(t)
	pkp := &PublicKeyPackage{
		Curve:          curve.TagEd25519,
		GroupPublicKey: []byte{1, 1, 1},
		VerifyingShares: map[int][]byte{
			1: {2, 2},
			2: {3, 3},
		},
	}

	if err := m.StorePublicKeyPackage(curve.TagEd25519, "vault-3", pkp); err != nil {
		t.Fatalf("StorePublicKeyPackage: %v", err)
	}
	got, err := m.GetPublicKeyPackage(curve.TagEd25519, "vault-3")
	if err != nil {
		t.Fatalf("GetPublicKeyPackage: %v", err)
	}
	if got == nil || string(got.GroupPublicKey) != string(pkp.GroupPublicKey) {
		t.Fatalf("round-tripped public key package mismatch: %+v", got)
	}
}

func TestHasPassphrase(t *testing.T) {
	m, _ := openTestManager(t)
	if has, err := m.HasPassphrase(curve.TagSchnorrSecp256k1, "vault-1"); err != nil || has {
		t.Fatalf("expected HasPassphrase to be false before any write, got (%v, %v)", has, err)
	}
	if err := m.StoreKeyPackage(curve.TagSchnorrSecp256k1, "vault-1", sampleKeyPackage()); err != nil {
		t.Fatalf("StoreKeyPackage: %v", err)
	}
	if has, err := m.HasPassphrase(curve.TagSchnorrSecp256k1, "vault-1"); err != nil || !has {
		t.Fatalf("expected HasPassphrase to be true after a write, got (%v, %v)", has, err)
	}
}

// lockableProvider is a minimal hsm.Provider fake that can be toggled
// locked/unlocked, used to exercise the AEAD-key-cache invalidation path
// without a real PKCS#11 library.
type lockableProvider struct {
	*hsm.PlaintextProvider
	locked bool
}

func (p *lockableProvider) IsLocked() bool { return p.locked }
func (p *lockableProvider) Unlock(pin string) (bool, error) {
	p.locked = false
	return true, nil
}
func (p *lockableProvider) Lock() { p.locked = true }
func (p *lockableProvider) Sign(label []byte) ([]byte, error) {
	if p.locked {
		return nil, hsm.ErrLocked
	}
	return p.PlaintextProvider.Sign(label)
}

func TestGetKeyPackage_LockedProviderFails(t *testing.T) {
	dir, err := os.MkdirTemp("", "sharestore-locked")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)

	p := &lockableProvider{PlaintextProvider: hsm.NewPlaintextProvider([]byte("seed"), "pin")}
	m, err := Open(dir, p, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	if err := m.StoreKeyPackage(curve.TagSchnorrSecp256k1, "vault-1", sampleKeyPackage()); err != nil {
		t.Fatalf("StoreKeyPackage: %v", err)
	}

	p.Lock()
	m.InvalidateKeyCache()
	if _, err := m.GetKeyPackage(curve.TagSchnorrSecp256k1, "vault-1"); err == nil {
		t.Fatal("expected an error reading from a locked provider")
	}

	p.Unlock("pin")
	got, err := m.GetKeyPackage(curve.TagSchnorrSecp256k1, "vault-1")
	if err != nil {
		t.Fatalf("GetKeyPackage after unlock: %v", err)
	}
	if got == nil {
		t.Fatal("expected the key package to still be readable after re-unlocking")
	}
}
