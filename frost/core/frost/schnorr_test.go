package frost

import (
	"crypto/sha256"
	"math/big"
	"testing"

	"frostcustody/frost/core/curve"
	"frostcustody/frost/core/dkg"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Test_CompareWithBtcecSchnorr cross-checks the internal single-signer
// Schnorr path against btcec's BIP-340 implementation — any divergence here
// means the threshold path built on top of SchnorrSign is unverifiable
// against real wallets.
func Test_CompareWithBtcecSchnorr(t *testing.T) {
	grp := curve.NewSecp256k1Group()
	privScalar := dkg.RandomScalar(grp.Order())
	privKey, _ := btcec.PrivKeyFromBytes(privScalar.Bytes())

	msg := []byte("consistency check")
	digest := sha256.Sum256(msg)

	Rx, Ry, z, _ := SchnorrSign(grp, privScalar, digest[:])

	sig, err := schnorr.Sign(privKey, digest[:])
	if err != nil {
		t.Fatalf("external schnorr.Sign failed: %v", err)
	}
	sigBytes := sig.Serialize()
	if len(sigBytes) != 64 {
		t.Fatalf("external signature length wrong: got %d, want 64", len(sigBytes))
	}

	RxExt := new(big.Int).SetBytes(sigBytes[:32])
	sExt := new(big.Int).SetBytes(sigBytes[32:])

	t.Logf(`
=== internal SchnorrSign ===
  R = (%s, %s)
  z = %s
=== external schnorr.Sign ===
  R.x = %s
  s   = %s
`, Rx.Text(16), Ry.Text(16), z.Text(16), RxExt.Text(16), sExt.Text(16))

	if Rx.Cmp(RxExt) != 0 {
		t.Errorf("R.x mismatch: internal %s, external %s", Rx.Text(16), RxExt.Text(16))
	}
	if z.Cmp(sExt) != 0 {
		t.Errorf("s/z mismatch: internal %s, external %s", z.Text(16), sExt.Text(16))
	}
}
