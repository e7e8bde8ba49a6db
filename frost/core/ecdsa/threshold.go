package ecdsa

import (
	"crypto/rand"
	"errors"
	"io"
	"math/big"

	"frostcustody/frost/core/curve"
)

var (
	ErrTooFewSigners = errors.New("ecdsa: too few signers for threshold signature")
	ErrMismatchedLen = errors.New("ecdsa: mismatched participant slice lengths")
)

// NonceSecrets is what a single participant keeps private after round 1:
// its own nonce share kappa and masking share gamma.
type NonceSecrets struct {
	Kappa *big.Int
	Gamma *big.Int
}

// NonceRound1 is what a participant broadcasts in round 1: the public
// commitment to its gamma share and Paillier encryptions of both shares,
// encrypted under its own Paillier public key so every other participant
// can run the MtA protocol against them.
type NonceRound1 struct {
	GammaPoint curve.Point
	CtKappa    *big.Int
	CtGamma    *big.Int
}

// GenerateNonceRound1 draws this participant's (kappa, gamma) pair and
// produces the round-1 broadcast message.
func GenerateNonceRound1(grp curve.Group, pub *PaillierPublicKey, rnd io.Reader) (*NonceSecrets, *NonceRound1, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	n := grp.Order()
	kappa, err := rand.Int(rnd, n)
	if err != nil {
		return nil, nil, err
	}
	gamma, err := rand.Int(rnd, n)
	if err != nil {
		return nil, nil, err
	}
	ctKappa, err := pub.Encrypt(kappa, rnd)
	if err != nil {
		return nil, nil, err
	}
	ctGamma, err := pub.Encrypt(gamma, rnd)
	if err != nil {
		return nil, nil, err
	}
	return &NonceSecrets{Kappa: kappa, Gamma: gamma},
		&NonceRound1{GammaPoint: grp.ScalarBaseMult(gamma), CtKappa: ctKappa, CtGamma: ctGamma},
		nil
}

// MtARespond runs the Bob side of one multiplicative-to-additive exchange:
// given the Alice-side participant's public key and her published
// ciphertext of value a, and this participant's own value b, it returns
// the ciphertext response to send back to Alice and this participant's own
// additive share beta (alpha + beta = a*b mod fieldOrder).
func MtARespond(pubAlice *PaillierPublicKey, ctA *big.Int, b, fieldOrder *big.Int, rnd io.Reader) (response, beta *big.Int, err error) {
	return MtABobStep(pubAlice, ctA, b, fieldOrder, rnd)
}

// MtAFinish runs the Alice side's final step: decrypt a Bob response to
// recover this participant's own additive share alpha.
func MtAFinish(privAlice *PaillierPrivateKey, response, fieldOrder *big.Int) (alpha *big.Int, err error) {
	return MtAAliceStep2(privAlice, response, fieldOrder)
}

// LocalProduct is the diagonal term a_i*b_i a participant contributes to an
// additive sum of products entirely by itself, with no MtA exchange
// needed — both factors are already its own.
func LocalProduct(a, b, fieldOrder *big.Int) *big.Int {
	p := new(big.Int).Mul(a, b)
	return p.Mod(p, fieldOrder)
}

// CombineShares sums a diagonal term together with a set of received alpha
// (as-Alice) and beta (as-Bob) shares into this participant's total share
// of the overall product sum.
func CombineShares(diagonal *big.Int, alphas, betas []*big.Int, fieldOrder *big.Int) *big.Int {
	sum := new(big.Int).Set(diagonal)
	for _, a := range alphas {
		sum.Add(sum, a)
	}
	for _, b := range betas {
		sum.Add(sum, b)
	}
	return sum.Mod(sum, fieldOrder)
}

// CombineDelta sums every participant's delta share into the public
// scalar delta = kappa * gamma (where kappa, gamma are the sums of all
// participants' shares). Revealing delta is safe: kappa and gamma remain
// individually unknown to everyone, and delta alone does not determine
// either factor.
func CombineDelta(deltaShares []*big.Int, fieldOrder *big.Int) *big.Int {
	delta := big.NewInt(0)
	for _, d := range deltaShares {
		delta.Add(delta, d)
	}
	return delta.Mod(delta, fieldOrder)
}

// ComputeNonceCommitment combines the revealed delta with the sum of every
// participant's public GammaPoint to recover R = kappa^-1 * G, the point
// whose x-coordinate is the ECDSA signature's r. No participant ever learns
// kappa itself to get here.
func ComputeNonceCommitment(grp curve.Group, sumGammaPoint curve.Point, delta, fieldOrder *big.Int) (curve.Point, error) {
	deltaInv := new(big.Int).ModInverse(delta, fieldOrder)
	if deltaInv == nil {
		return curve.Point{}, errors.New("ecdsa: delta has no inverse mod field order")
	}
	return grp.ScalarMult(sumGammaPoint, deltaInv), nil
}

// ComputeRhoShare computes this participant's additive share of
// rho = kappa^-1, given the now-public delta and its own private gamma
// share: rho_i = delta^-1 * gamma_i mod n.
func ComputeRhoShare(gammaI, delta, fieldOrder *big.Int) *big.Int {
	deltaInv := new(big.Int).ModInverse(delta, fieldOrder)
	rho := new(big.Int).Mul(deltaInv, gammaI)
	return rho.Mod(rho, fieldOrder)
}

// ComputeSigShare is a participant's final local step: given its share
// rhoI of k^-1, its share sigmaI of k^-1 * x (accumulated via the
// LocalProduct/MtA exchange run against each other participant's
// Lagrange-weighted key share), the signature's r, and the message digest
// hash, compute s_i = rhoI*hash + r*sigmaI mod n. Summing every
// participant's s_i gives the final ECDSA s.
func ComputeSigShare(rhoI, sigmaI, r, hash, fieldOrder *big.Int) *big.Int {
	term1 := new(big.Int).Mul(rhoI, hash)
	term2 := new(big.Int).Mul(r, sigmaI)
	s := new(big.Int).Add(term1, term2)
	return s.Mod(s, fieldOrder)
}

// CombineSignature sums every participant's s_i share, normalizes s to the
// lower half of the field (as is conventional to prevent signature
// malleability), and encodes the conventional 65-byte (r, s, v) layout. v is a
// best-effort recovery byte derived from the nonce point's parity and
// whether s was flipped — see DESIGN.md's "ECDSA recovery byte" decision;
// it is never consulted by VerifyECDSASecp256k1.
func CombineSignature(grp curve.Group, r *big.Int, sigShares []*big.Int, nonceCommitment curve.Point) []byte {
	n := grp.Order()
	s := big.NewInt(0)
	for _, si := range sigShares {
		s.Add(s, si)
	}
	s.Mod(s, n)

	v := byte(nonceCommitment.Y.Bit(0))
	halfN := new(big.Int).Rsh(n, 1)
	if s.Cmp(halfN) > 0 {
		s.Sub(n, s)
		v ^= 1
	}

	out := make([]byte, 65)
	r.FillBytes(out[:32])
	s.FillBytes(out[32:64])
	out[64] = v
	return out
}

// AllOrderedPairs returns every ordered pair of distinct indices in
// [0, n) — the shape of the MtA exchange a signing quorum of size n must
// run for each of the delta and sigma phases (n*(n-1) instances per
// phase).
func AllOrderedPairs(n int) [][2]int {
	pairs := make([][2]int, 0, n*(n-1))
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				pairs = append(pairs, [2]int{i, j})
			}
		}
	}
	return pairs
}
