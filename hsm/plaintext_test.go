package hsm

import (
	"bytes"
	"errors"
	"testing"
)

func TestPlaintextProvider_DeterministicSign(t *testing.T) {
	p := NewPlaintextProvider([]byte("test-master-seed"), "pin")

	sig1, err := p.Sign([]byte("vault-1"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	sig2, err := p.Sign([]byte("vault-1"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !bytes.Equal(sig1, sig2) {
		t.Fatal("Sign must be deterministic for the same label")
	}
}

func TestPlaintextProvider_DifferentLabelsDiverge(t *testing.T) {
	p := NewPlaintextProvider([]byte("test-master-seed"), "pin")

	sig1, _ := p.Sign([]byte("vault-1"))
	sig2, _ := p.Sign([]byte("vault-2"))
	if bytes.Equal(sig1, sig2) {
		t.Fatal("different labels must not produce the same signature")
	}
}

func TestPlaintextProvider_StartsLockedWithoutPIN(t *testing.T) {
	p := NewPlaintextProvider([]byte("seed"), "")
	if !p.IsLocked() {
		t.Fatal("a plaintext provider configured with no PIN should start locked")
	}
	if _, err := p.Sign([]byte("x")); !errors.Is(err, ErrLocked) {
		t.Fatalf("Sign() on a locked provider = %v, want ErrLocked", err)
	}
}

func TestPlaintextProvider_StartsUnlockedWithPIN(t *testing.T) {
	p := NewPlaintextProvider([]byte("seed"), "1234")
	if p.IsLocked() {
		t.Fatal("a plaintext provider configured with a PIN should start unlocked")
	}
	if _, err := p.Sign([]byte("x")); err != nil {
		t.Fatalf("Sign: %v", err)
	}
}

func TestPlaintextProvider_UnlockWrongPIN(t *testing.T) {
	p := NewPlaintextProvider([]byte("seed"), "1234")
	p.Lock()

	unlocked, err := p.Unlock("0000")
	if unlocked || !errors.Is(err, ErrWrongPIN) {
		t.Fatalf("Unlock(wrong) = (%v, %v), want (false, ErrWrongPIN)", unlocked, err)
	}
	if !p.IsLocked() {
		t.Fatal("provider should remain locked after a failed Unlock")
	}
}

func TestPlaintextProvider_UnlockCorrectPIN(t *testing.T) {
	p := NewPlaintextProvider([]byte("seed"), "1234")
	p.Lock()
	if _, err := p.Sign([]byte("x")); !errors.Is(err, ErrLocked) {
		t.Fatalf("Sign() while locked = %v, want ErrLocked", err)
	}

	unlocked, err := p.Unlock("1234")
	if err != nil || !unlocked {
		t.Fatalf("Unlock(correct) = (%v, %v), want (true, nil)", unlocked, err)
	}
	if p.IsLocked() {
		t.Fatal("provider should be unlocked after a correct Unlock")
	}
	if _, err := p.Sign([]byte("x")); err != nil {
		t.Fatalf("Sign after unlock: %v", err)
	}
}

func TestPlaintextProvider_UnlockAlreadyUnlockedIsNoop(t *testing.T) {
	p := NewPlaintextProvider([]byte("seed"), "1234")
	unlocked, err := p.Unlock("wrong-but-irrelevant")
	if err != nil || unlocked {
		t.Fatalf("Unlock() on an already-unlocked provider = (%v, %v), want (false, nil)", unlocked, err)
	}
}

func TestPlaintextProviderFromHex(t *testing.T) {
	p, err := NewPlaintextProviderFromHex("00112233445566778899aabbccddeeff0011223344556677889900aabbccdd", "pin")
	if err != nil {
		t.Fatalf("NewPlaintextProviderFromHex: %v", err)
	}
	if _, err := p.Sign([]byte("label")); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if _, err := NewPlaintextProviderFromHex("not-hex", "pin"); err == nil {
		t.Fatal("expected an error decoding invalid hex")
	}
}
