package dkg

import (
	"crypto/rand"
	"errors"
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"

	"frostcustody/frost/core/curve"
	"frostcustody/frost/security"
)

// runFullDKG drives a 3-participant, threshold-2 dealer-free DKG to
// completion over grp and returns every participant's combined signing
// share plus the group public key, so callers can assert a FROST signature
// made from the shares verifies against it.
func runFullDKG(t *testing.T, grp curve.Group) (groupPub curve.Point, shares map[int]*big.Int, verifying map[int]curve.Point) {
	t.Helper()
	const n, thresh = 3, 2
	ids := []int{1, 2, 3}
	context := []byte("test-vault")

	transportPriv := make(map[int][]byte, n)
	transportPub := make(map[int][]byte, n)
	for _, id := range ids {
		priv := make([]byte, 32)
		if _, err := rand.Read(priv); err != nil {
			t.Fatalf("rand: %v", err)
		}
		pk, _ := btcec.PrivKeyFromBytes(priv)
		transportPriv[id] = priv
		transportPub[id] = pk.PubKey().SerializeCompressed()
	}

	polys := make(map[int]*Polynomial, n)
	round1 := make(map[int]*Round1Package, n)
	for _, id := range ids {
		poly, pkg, err := GenerateRound1(grp, id, thresh, context, rand.Reader)
		if err != nil {
			t.Fatalf("GenerateRound1(%d): %v", id, err)
		}
		if !VerifyRound1PoK(grp, pkg, context) {
			t.Fatalf("participant %d's own PoK failed to verify", id)
		}
		polys[id] = poly
		round1[id] = pkg
	}

	// round2: every dealer encrypts a share for every receiver (including
	// itself), then every receiver decrypts and verifies what it got.
	round2 := make(map[int]map[int][]byte, n) // dealer -> receiver -> ciphertext
	for _, dealer := range ids {
		cts, err := EncryptRound2Shares(grp, polys[dealer], ids, transportPub, rand.Reader)
		if err != nil {
			t.Fatalf("EncryptRound2Shares(%d): %v", dealer, err)
		}
		round2[dealer] = cts
	}

	dealerCommitments := make(map[int][][]byte, n)
	for _, dealer := range ids {
		dealerCommitments[dealer] = round1[dealer].CommitmentPoints
	}

	shares = make(map[int]*big.Int, n)
	for _, receiver := range ids {
		received := make([]*big.Int, 0, n)
		for _, dealer := range ids {
			share, err := DecryptShare(round2[dealer][receiver], transportPriv[receiver])
			if err != nil {
				t.Fatalf("DecryptShare(dealer=%d, receiver=%d): %v", dealer, receiver, err)
			}
			if !VerifyShare(grp, share, dealerCommitments[dealer], receiver) {
				t.Fatalf("share from dealer %d to receiver %d failed VSS verification", dealer, receiver)
			}
			received = append(received, share)
		}
		shares[receiver] = CombineSigningShare(grp, received)
	}

	groupPub, err := CombineGroupPublicKey(grp, dealerCommitments)
	if err != nil {
		t.Fatalf("CombineGroupPublicKey: %v", err)
	}

	verifying = make(map[int]curve.Point, n)
	for _, id := range ids {
		v, err := CombineVerifyingShare(grp, dealerCommitments, id)
		if err != nil {
			t.Fatalf("CombineVerifyingShare(%d): %v", id, err)
		}
		verifying[id] = v
	}
	return groupPub, shares, verifying
}

func TestFullDKG_Secp256k1_SharesMatchVerifyingKeys(t *testing.T) {
	grp := curve.NewSecp256k1Group()
	groupPub, shares, verifying := runFullDKG(t, grp)

	gx, gy := groupPub.XY()
	if gx == nil || gy == nil {
		t.Fatal("nil group public key")
	}

	for id, share := range shares {
		got := grp.ScalarBaseMult(share)
		gotX, gotY := got.XY()
		wantX, wantY := verifying[id].XY()
		if gotX.Cmp(wantX) != 0 || gotY.Cmp(wantY) != 0 {
			t.Fatalf("participant %d: g^signingShare does not match its combined verifying share", id)
		}
	}
}

func TestFullDKG_Ed25519_SharesMatchVerifyingKeys(t *testing.T) {
	grp := curve.NewEd25519Group()
	_, shares, verifying := runFullDKG(t, grp)

	for id, share := range shares {
		got := grp.ScalarBaseMult(share)
		gotX, gotY := got.XY()
		wantX, wantY := verifying[id].XY()
		if gotX.Cmp(wantX) != 0 || gotY.Cmp(wantY) != 0 {
			t.Fatalf("participant %d: g^signingShare does not match its combined verifying share", id)
		}
	}
}

func TestVerifyRound1PoK_RejectsTamperedCommitment(t *testing.T) {
	grp := curve.NewSecp256k1Group()
	_, pkg, err := GenerateRound1(grp, 1, 2, []byte("ctx"), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateRound1: %v", err)
	}
	// Swap in an unrelated point as the constant-term commitment; the PoK
	// was computed against the original and must stop verifying.
	other := grp.SerializePoint(grp.ScalarBaseMult(big.NewInt(12345)))
	pkg.CommitmentPoints[0] = other
	if VerifyRound1PoK(grp, pkg, []byte("ctx")) {
		t.Fatal("PoK verified against a tampered commitment")
	}
}

func TestVerifyShare_RejectsWrongShare(t *testing.T) {
	grp := curve.NewSecp256k1Group()
	poly, pkg, err := GenerateRound1(grp, 1, 2, []byte("ctx"), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateRound1: %v", err)
	}
	correct := poly.Evaluate(big.NewInt(2), grp)
	if !VerifyShare(grp, correct, pkg.CommitmentPoints, 2) {
		t.Fatal("correct share failed to verify")
	}
	wrong := new(big.Int).Add(correct, big.NewInt(1))
	if VerifyShare(grp, wrong, pkg.CommitmentPoints, 2) {
		t.Fatal("off-by-one share verified")
	}
}

func TestECIESRoundTrip_ThroughDKGHelpers(t *testing.T) {
	priv := make([]byte, 32)
	if _, err := rand.Read(priv); err != nil {
		t.Fatalf("rand: %v", err)
	}
	pk, _ := btcec.PrivKeyFromBytes(priv)
	pub := pk.PubKey().SerializeCompressed()

	grp := curve.NewSecp256k1Group()
	poly := &Polynomial{Coefficients: []*big.Int{big.NewInt(7), big.NewInt(11)}}
	cts, err := EncryptRound2Shares(grp, poly, []int{9}, map[int][]byte{9: pub}, rand.Reader)
	if err != nil {
		t.Fatalf("EncryptRound2Shares: %v", err)
	}
	got, err := DecryptShare(cts[9], priv)
	if err != nil {
		t.Fatalf("DecryptShare: %v", err)
	}
	want := poly.Evaluate(big.NewInt(9), grp)
	if got.Cmp(want) != 0 {
		t.Fatalf("decrypted share %v, want %v", got, want)
	}

	wrongPriv := make([]byte, 32)
	if _, err := rand.Read(wrongPriv); err != nil {
		t.Fatalf("rand: %v", err)
	}
	if _, err := DecryptShare(cts[9], wrongPriv); !errors.Is(err, security.ErrMacVerificationFailed) {
		t.Fatalf("DecryptShare with the wrong key: got %v, want a wrapped %v", err, security.ErrMacVerificationFailed)
	}
}
