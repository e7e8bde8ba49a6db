package hsm

import (
	"testing"

	"frostcustody/config"
)

func TestNew_Plaintext(t *testing.T) {
	p, err := New(config.KeyProviderConfig{
		Type:          "plaintext",
		MasterSeedHex: "00112233445566778899aabbccddeeff0011223344556677889900aabbccdd",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := p.(*PlaintextProvider); !ok {
		t.Fatalf("New(plaintext) returned %T, want *PlaintextProvider", p)
	}
}

func TestNew_UnknownType(t *testing.T) {
	if _, err := New(config.KeyProviderConfig{Type: "kms"}); err == nil {
		t.Fatal("expected an error for an unrecognized key provider type")
	}
}
