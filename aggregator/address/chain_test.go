package address

import (
	"math/big"
	"strings"
	"testing"

	"frostcustody/frost/core/curve"
)

func groupPubkey(t *testing.T, tag curve.Tag, scalar int64) []byte {
	t.Helper()
	grp, err := curve.ForTag(tag)
	if err != nil {
		t.Fatalf("ForTag(%s): %v", tag, err)
	}
	p := grp.ScalarBaseMult(big.NewInt(scalar))
	return grp.SerializePoint(p)
}

func TestEncoderForUnknownChain(t *testing.T) {
	if _, err := EncoderFor("doge"); err == nil {
		t.Fatal("expected an error for an unsupported chain")
	}
}

func TestBTCTaprootEncoder(t *testing.T) {
	enc, err := EncoderFor("btc")
	if err != nil {
		t.Fatalf("EncoderFor(btc): %v", err)
	}
	if enc.Curve() != curve.TagSchnorrSecp256k1 {
		t.Fatalf("btc encoder curve = %s, want %s", enc.Curve(), curve.TagSchnorrSecp256k1)
	}

	pub := groupPubkey(t, curve.TagSchnorrSecp256k1, 42)
	addr, err := enc.Encode(pub)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.HasPrefix(addr, "bc1p") {
		t.Fatalf("expected a bech32m Taproot address, got %q", addr)
	}
}

func TestETHKeccakEncoder(t *testing.T) {
	enc, err := EncoderFor("eth")
	if err != nil {
		t.Fatalf("EncoderFor(eth): %v", err)
	}
	if enc.Curve() != curve.TagECDSASecp256k1 {
		t.Fatalf("eth encoder curve = %s, want %s", enc.Curve(), curve.TagECDSASecp256k1)
	}

	pub := groupPubkey(t, curve.TagECDSASecp256k1, 7)
	addr, err := enc.Encode(pub)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.HasPrefix(addr, "0x") || len(addr) != 42 {
		t.Fatalf("expected a 20-byte 0x-prefixed address, got %q", addr)
	}

	addr2, err := enc.Encode(pub)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if addr != addr2 {
		t.Fatal("encoding must be deterministic for the same public key")
	}
}

func TestSolBase58Encoder(t *testing.T) {
	enc, err := EncoderFor("sol")
	if err != nil {
		t.Fatalf("EncoderFor(sol): %v", err)
	}
	if enc.Curve() != curve.TagEd25519 {
		t.Fatalf("sol encoder curve = %s, want %s", enc.Curve(), curve.TagEd25519)
	}

	pub := groupPubkey(t, curve.TagEd25519, 3)
	addr, err := enc.Encode(pub)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if addr == "" {
		t.Fatal("expected a non-empty base58 address")
	}

	if _, err := enc.Encode(make([]byte, 31)); err == nil {
		t.Fatal("expected an error for a non-32-byte Ed25519 public key")
	}
}
