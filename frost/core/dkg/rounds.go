// Round1/Round2/Finalize implement a dealer-free Pedersen DKG over any
// curve.Group: every participant deals a Feldman-VSS share of its own
// random polynomial to every other participant, and each participant sums
// what it receives into its final signing share. No party ever learns the
// joint secret.
package dkg

import (
	"crypto/sha256"
	"fmt"
	"io"
	"math/big"
	"sort"

	"frostcustody/frost/core/curve"
	"frostcustody/frost/security"
)

// Round1Package is the broadcast output of a participant's round 1: its
// Feldman-VSS commitment to its secret polynomial, plus a Schnorr proof of
// knowledge of the constant term, so a participant can't later deal a share
// inconsistent with a commitment it never really knew the discrete log of
// (the classic DKG rogue-key defense).
type Round1Package struct {
	ParticipantID     int      `json:"participantId"`
	CommitmentPoints  [][]byte `json:"commitmentPoints"` // A_0..A_{t-1}, grp.SerializePoint
	PoKR              []byte   `json:"pokR"`
	PoKZ              []byte   `json:"pokZ"`
}

// pokChallenge is a self-contained Fiat-Shamir Schnorr proof of knowledge of
// a participant's constant-term coefficient, independent of any
// ciphersuite's signature wire format — it never leaves the DKG and is
// never verified by anything outside it.
func pokChallenge(grp curve.Group, context []byte, participantID int, R, A0 curve.Point) *big.Int {
	h := sha256.New()
	h.Write([]byte("dkg-pok"))
	h.Write(context)
	h.Write([]byte{byte(participantID >> 24), byte(participantID >> 16), byte(participantID >> 8), byte(participantID)})
	h.Write(grp.SerializePoint(R))
	h.Write(grp.SerializePoint(A0))
	e := new(big.Int).SetBytes(h.Sum(nil))
	return e.Mod(e, grp.Order())
}

// GenerateRound1 draws a fresh degree-(t-1) polynomial from reader (pass a
// deterministic rng.Reader-backed reader so a restarted node regenerates
// the identical polynomial for an in-flight DKG rather than forking state)
// and returns both the secret polynomial and its public round-1 package.
func GenerateRound1(grp curve.Group, participantID, t int, context []byte, reader io.Reader) (*Polynomial, *Round1Package, error) {
	var poly *Polynomial
	WithReader(reader, func() {
		poly = NewPolynomial(t, grp)
	})

	commitments := make([][]byte, t)
	for k, coeff := range poly.Coefficients {
		commitments[k] = grp.SerializePoint(grp.ScalarBaseMult(coeff))
	}

	a0 := poly.Coefficients[0]
	var k *big.Int
	WithReader(reader, func() {
		k = RandomScalar(grp.Order())
	})
	R := grp.ScalarBaseMult(k)
	A0 := grp.ScalarBaseMult(a0)
	e := pokChallenge(grp, context, participantID, R, A0)
	z := new(big.Int).Mod(new(big.Int).Add(k, new(big.Int).Mul(e, a0)), grp.Order())

	return poly, &Round1Package{
		ParticipantID:    participantID,
		CommitmentPoints: commitments,
		PoKR:             grp.SerializePoint(R),
		PoKZ:             z.Bytes(),
	}, nil
}

// VerifyRound1PoK checks a dealer's proof of knowledge of its own constant
// term before any of its round-2 shares are trusted: z*G must equal
// R + e*A0.
func VerifyRound1PoK(grp curve.Group, pkg *Round1Package, context []byte) bool {
	if len(pkg.CommitmentPoints) == 0 {
		return false
	}
	A0 := grp.DecompressPoint(pkg.CommitmentPoints[0])
	R := grp.DecompressPoint(pkg.PoKR)
	if A0.X == nil || R.X == nil {
		return false
	}
	z := new(big.Int).SetBytes(pkg.PoKZ)
	e := pokChallenge(grp, context, pkg.ParticipantID, R, A0)

	lhs := grp.ScalarBaseMult(z)
	rhs := grp.Add(R, grp.ScalarMult(A0, e))
	lx, ly := lhs.XY()
	rx, ry := rhs.XY()
	return lx.Cmp(rx) == 0 && ly.Cmp(ry) == 0
}

// EncryptRound2Shares evaluates poly at every receiver's id and ECIES-seals
// each share to that receiver's transport public key. reader supplies the
// per-receiver encryption randomness deterministically, in ascending
// receiver-id order, so a re-derivation after a crash produces byte-
// identical ciphertexts.
func EncryptRound2Shares(grp curve.Group, poly *Polynomial, receiverIDs []int, transportPubKeys map[int][]byte, reader io.Reader) (map[int][]byte, error) {
	sorted := append([]int(nil), receiverIDs...)
	sort.Ints(sorted)

	out := make(map[int][]byte, len(sorted))
	for _, id := range sorted {
		pub, ok := transportPubKeys[id]
		if !ok {
			return nil, fmt.Errorf("dkg: no transport public key for participant %d", id)
		}
		share := poly.Evaluate(big.NewInt(int64(id)), grp)
		shareBytes := share.FillBytes(make([]byte, 32))

		randomness := make([]byte, 32)
		if _, err := io.ReadFull(reader, randomness); err != nil {
			return nil, fmt.Errorf("dkg: draw share randomness: %w", err)
		}
		ct, err := security.ECIESEncrypt(pub, shareBytes, randomness)
		if err != nil {
			return nil, fmt.Errorf("dkg: encrypt share for participant %d: %w", id, err)
		}
		out[id] = ct
	}
	return out, nil
}

// DecryptShare opens a round-2 ciphertext addressed to this participant
// with its transport private key.
func DecryptShare(ciphertext, transportPriv []byte) (*big.Int, error) {
	plaintext, err := security.ECIESDecrypt(transportPriv, ciphertext, 32)
	if err != nil {
		return nil, fmt.Errorf("dkg: decrypt share: %w", err)
	}
	return new(big.Int).SetBytes(plaintext), nil
}

// evaluateCommitments computes sum_k commitments[k] * index^k, the
// exponent-side evaluation of a dealer's Feldman-VSS polynomial at index —
// used both to verify one received share and to compute a combined
// verifying share for every participant once all dealers are known.
func evaluateCommitments(grp curve.Group, commitments []curve.Point, index *big.Int) curve.Point {
	n := grp.Order()
	xPower := big.NewInt(1)
	var acc curve.Point
	for k, A := range commitments {
		term := grp.ScalarMult(A, xPower)
		if k == 0 {
			acc = term
		} else {
			acc = grp.Add(acc, term)
		}
		xPower = new(big.Int).Mod(new(big.Int).Mul(xPower, index), n)
	}
	return acc
}

// VerifyShare checks a decrypted round-2 share against its dealer's
// round-1 Feldman-VSS commitment: g^share must equal
// Prod_k(A_k ^ receiverIndex^k). Generic over any curve.Group, unlike
// security.VerifyShareAgainstCommitment's secp256k1-only equivalent.
func VerifyShare(grp curve.Group, share *big.Int, dealerCommitments [][]byte, receiverIndex int) bool {
	if len(dealerCommitments) == 0 {
		return false
	}
	points := make([]curve.Point, len(dealerCommitments))
	for i, raw := range dealerCommitments {
		points[i] = grp.DecompressPoint(raw)
		if points[i].X == nil {
			return false
		}
	}
	expected := evaluateCommitments(grp, points, big.NewInt(int64(receiverIndex)))
	got := grp.ScalarBaseMult(share)
	gotX, gotY := got.XY()
	wantX, wantY := expected.XY()
	return gotX.Cmp(wantX) == 0 && gotY.Cmp(wantY) == 0
}

// CombineSigningShare sums every dealt share this participant received
// (including its own dealer contribution to itself) into its final FROST
// signing share.
func CombineSigningShare(grp curve.Group, shares []*big.Int) *big.Int {
	n := grp.Order()
	total := big.NewInt(0)
	for _, s := range shares {
		total.Add(total, s)
		total.Mod(total, n)
	}
	return total
}

// CombineGroupPublicKey sums every dealer's constant-term commitment
// (A_i0) into the joint group public key g^(sum a_i0).
func CombineGroupPublicKey(grp curve.Group, dealerCommitments map[int][][]byte) (curve.Point, error) {
	var acc curve.Point
	first := true
	for _, commitments := range dealerCommitments {
		if len(commitments) == 0 {
			return curve.Point{}, fmt.Errorf("dkg: dealer contributed no commitments")
		}
		A0 := grp.DecompressPoint(commitments[0])
		if A0.X == nil {
			return curve.Point{}, fmt.Errorf("dkg: invalid commitment point")
		}
		if first {
			acc = A0
			first = false
		} else {
			acc = grp.Add(acc, A0)
		}
	}
	return acc, nil
}

// CombineVerifyingShare computes participant id's public verifying share
// Y_id = g^f(id), where f = sum of every dealer's polynomial, by summing
// each dealer's commitment polynomial evaluated at id.
func CombineVerifyingShare(grp curve.Group, dealerCommitments map[int][][]byte, id int) (curve.Point, error) {
	var acc curve.Point
	first := true
	idx := big.NewInt(int64(id))
	for _, commitments := range dealerCommitments {
		points := make([]curve.Point, len(commitments))
		for i, raw := range commitments {
			points[i] = grp.DecompressPoint(raw)
			if points[i].X == nil {
				return curve.Point{}, fmt.Errorf("dkg: invalid commitment point")
			}
		}
		term := evaluateCommitments(grp, points, idx)
		if first {
			acc = term
			first = false
		} else {
			acc = grp.Add(acc, term)
		}
	}
	return acc, nil
}
