package frost

import (
	"crypto/sha256"
	"errors"
	"io"
	"math/big"

	"frostcustody/frost/core/curve"
	"frostcustody/frost/core/dkg"
)

// minSigners is the smallest threshold this package will drive. Config
// validation independently rejects a threshold below 2; this is a final
// defensive floor inside the math itself.
const minSigners = 2

var (
	ErrInsufficientSigners = errors.New("insufficient signers")
	ErrInvalidCommitment   = errors.New("invalid nonce commitment")
)

// SignerNonces is one signer's pair of round-1 nonce scalars: the hiding
// nonce d and the binding nonce e. Everything downstream of round1 — the
// node's nonce_handle, the group commitment, the partial signature — is
// built from this pair, never from a single nonce, so that publishing one
// signer's (D, E) commitment can't let others forge a rogue aggregate
// commitment (the attack a naive single-nonce threshold Schnorr scheme is
// open to).
type SignerNonces struct {
	D *big.Int
	E *big.Int
}

// SignerCommitment is the public half of SignerNonces: D = dG, E = eG,
// broadcast in round1's response and echoed back to every signer in
// round2's request.
type SignerCommitment struct {
	ID int
	Dx *big.Int
	Dy *big.Int
	Ex *big.Int
	Ey *big.Int
}

// ChallengeFunc computes the Fiat-Shamir challenge e = f(Rx, Px, msg) for a
// Schnorr-family threshold signature.
type ChallengeFunc func(Rx, Px *big.Int, msg []byte, grp curve.Group) *big.Int

// GenerateNonces draws a fresh (d, e) pair and their commitments for round1.
// nonceReader, if non-nil, replaces the package-default crypto/rand source
// and makes the draw reproducible from that reader (ThresholdSign's
// nonceReaders); the node's round1 handler passes nil, so its nonces come
// from crypto/rand.
func GenerateNonces(grp curve.Group, nonceReader io.Reader) (SignerNonces, SignerCommitment, error) {
	N := grp.Order()
	d, err := drawScalar(grp, nonceReader, N)
	if err != nil {
		return SignerNonces{}, SignerCommitment{}, err
	}
	e, err := drawScalar(grp, nonceReader, N)
	if err != nil {
		return SignerNonces{}, SignerCommitment{}, err
	}
	Dx, Dy := grp.ScalarBaseMultBytes(d.Bytes()).XY()
	Ex, Ey := grp.ScalarBaseMultBytes(e.Bytes()).XY()
	return SignerNonces{D: d, E: e}, SignerCommitment{Dx: Dx, Dy: Dy, Ex: Ex, Ey: Ey}, nil
}

func drawScalar(grp curve.Group, r io.Reader, n *big.Int) (*big.Int, error) {
	if r == nil {
		return dkg.RandomScalar(n), nil
	}
	return randScalarFrom(r, n)
}

func randScalarFrom(r io.Reader, n *big.Int) (*big.Int, error) {
	buf := make([]byte, (n.BitLen()+7)/8+8) // extra bytes to keep mod-bias negligible
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	v := new(big.Int).SetBytes(buf)
	return v.Mod(v, n), nil
}

// bindingCoefficientInputs renders the commitment list in a fixed,
// participant-id-sorted encoding so every signer derives the identical
// rho_i regardless of the order round2's request happened to list them in.
func bindingCoefficientInputs(commitments []SignerCommitment) []SignerCommitment {
	sorted := make([]SignerCommitment, len(commitments))
	copy(sorted, commitments)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1].ID > sorted[j].ID; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	return sorted
}

// ComputeBindingCoefficient derives signer id's binding factor rho_i =
// H(id || msg || commitment_list) over the full, sorted commitment set —
// the FROST binding-factor construction that stops one signer's share from
// being replayed against a different commitment set.
func ComputeBindingCoefficient(id int, msg []byte, commitments []SignerCommitment, grp curve.Group) *big.Int {
	h := sha256.New()
	h.Write([]byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)})
	h.Write(msg)
	for _, c := range bindingCoefficientInputs(commitments) {
		h.Write([]byte{byte(c.ID >> 24), byte(c.ID >> 16), byte(c.ID >> 8), byte(c.ID)})
		h.Write(c.Dx.Bytes())
		h.Write(c.Dy.Bytes())
		h.Write(c.Ex.Bytes())
		h.Write(c.Ey.Bytes())
	}
	rho := new(big.Int).SetBytes(h.Sum(nil))
	return rho.Mod(rho, grp.Order())
}

// ComputeGroupCommitment sums every signer's D_i + rho_i*E_i into the
// aggregate nonce point R used as the signature's R.
func ComputeGroupCommitment(commitments []SignerCommitment, bindingFactors map[int]*big.Int, grp curve.Group) (Rx, Ry *big.Int, err error) {
	if len(commitments) == 0 {
		return nil, nil, ErrInsufficientSigners
	}
	for _, c := range commitments {
		rho, ok := bindingFactors[c.ID]
		if !ok {
			return nil, nil, ErrInvalidCommitment
		}
		Ei := curve.Point{X: c.Ex, Y: c.Ey}
		rhoE := grp.ScalarMultBytes(Ei, rho.Bytes())
		Di := curve.Point{X: c.Dx, Y: c.Dy}
		sum := grp.Add(Di, rhoE)
		if Rx == nil {
			Rx, Ry = sum.XY()
			continue
		}
		Rx, Ry = grp.Add(curve.Point{X: Rx, Y: Ry}, sum).XY()
	}
	return Rx, Ry, nil
}

// PartialSign computes signer id's round-2 signature share
// z_i = d_i + rho_i*e_i + lambda_i*challenge*share (mod n), after flipping
// (d_i, e_i) to match whichever nonce sign makes the group R have an even
// Y — the BIP-340 rule this package enforces on every aggregate, threshold
// or not.
func PartialSign(grp curve.Group, nonces SignerNonces, rho, lambda, challenge, share *big.Int, groupRY *big.Int) *big.Int {
	n := grp.Order()
	d, e := nonces.D, nonces.E
	if groupRY.Bit(0) == 1 {
		d = new(big.Int).Sub(n, d)
		e = new(big.Int).Sub(n, e)
	}

	zi := new(big.Int).Mul(rho, e)
	zi.Add(zi, d)

	term := new(big.Int).Mul(challenge, share)
	term.Mul(term, lambda)
	zi.Add(zi, term)

	return zi.Mod(zi, n)
}

// VerifyPartialSignature checks signer id's share against its own FROST
// public-key share before aggregation, so the aggregator can identify and
// drop a misbehaving node rather than fail the whole round opaquely:
// z_i*G must equal (D_i + rho_i*E_i) + lambda_i*challenge*PublicKeyShare_i,
// accounting for the same even-R nonce flip PartialSign applies.
func VerifyPartialSignature(grp curve.Group, z *big.Int, commitment SignerCommitment, rho, lambda, challenge *big.Int, publicKeyShare curve.Point, groupRY *big.Int) bool {
	Di := curve.Point{X: commitment.Dx, Y: commitment.Dy}
	Ei := curve.Point{X: commitment.Ex, Y: commitment.Ey}
	if groupRY.Bit(0) == 1 {
		Di = curve.Point{X: Di.X, Y: new(big.Int).Sub(grp.Modulus(), Di.Y)}
		Ei = curve.Point{X: Ei.X, Y: new(big.Int).Sub(grp.Modulus(), Ei.Y)}
	}

	rhoE := grp.ScalarMultBytes(Ei, rho.Bytes())
	lhsPoint := grp.Add(Di, rhoE)

	lambdaE := new(big.Int).Mul(lambda, challenge)
	lambdaE.Mod(lambdaE, grp.Order())
	term := grp.ScalarMultBytes(publicKeyShare, lambdaE.Bytes())

	expected := grp.Add(lhsPoint, term)
	gotX, gotY := grp.ScalarBaseMultBytes(z.Bytes()).XY()
	wantX, wantY := expected.XY()
	return gotX.Cmp(wantX) == 0 && gotY.Cmp(wantY) == 0
}

// AggregateSignatureShares sums per-signer z_i into the final scalar z and
// returns the 64-byte R.x || z signature. For Ed25519, z is written
// little-endian as RFC 8032 encodes S.
func AggregateSignatureShares(Rx, Ry *big.Int, shares map[int]*big.Int, grp curve.Group) ([]byte, error) {
	if len(shares) < minSigners {
		return nil, ErrInsufficientSigners
	}
	z := big.NewInt(0)
	for _, zi := range shares {
		z.Add(z, zi)
	}
	z.Mod(z, grp.Order())

	sig := make([]byte, 64)
	Rx.FillBytes(sig[:32])
	z.FillBytes(sig[32:])
	if _, ok := grp.(*curve.Ed25519Group); ok {
		copy(sig[32:], reverseBytes(sig[32:]))
	}
	_ = Ry
	return sig, nil
}

// ThresholdSign runs a full two-round FROST signature for a selected subset
// of signers in one process (used by tests and by any caller that already
// holds every signer's shares, rather than orchestrating them over HTTP).
// nonceReaders, if non-nil, must have the same length as idsSel and
// supplies each signer's deterministic nonce source in order.
func ThresholdSign(
	grp curve.Group,
	idsSel, sjSel []*big.Int,
	msg32 []byte,
	Qx *big.Int,
	challenge ChallengeFunc,
	nonceReaders []io.Reader,
) ([]byte, error) {
	if len(idsSel) != len(sjSel) || len(idsSel) < minSigners {
		return nil, errors.New("ids / shares length mismatch or too few signers")
	}
	if nonceReaders != nil && len(nonceReaders) != len(idsSel) {
		return nil, errors.New("nonceReaders length must match idsSel")
	}
	t := len(idsSel)

	ids := make([]int, t)
	nonces := make([]SignerNonces, t)
	commitments := make([]SignerCommitment, t)
	for i := 0; i < t; i++ {
		var nr io.Reader
		if nonceReaders != nil {
			nr = nonceReaders[i]
		}
		id := int(idsSel[i].Int64())
		ids[i] = id
		ns, c, err := GenerateNonces(grp, nr)
		if err != nil {
			return nil, err
		}
		c.ID = id
		nonces[i] = ns
		commitments[i] = c
	}

	bindingFactors := make(map[int]*big.Int, t)
	for _, id := range ids {
		bindingFactors[id] = ComputeBindingCoefficient(id, msg32, commitments, grp)
	}

	Rx, Ry, err := ComputeGroupCommitment(commitments, bindingFactors, grp)
	if err != nil {
		return nil, err
	}

	e := challenge(Rx, Qx, msg32, grp)

	lambda := dkg.ComputeLagrangeCoefficients(idsSel, grp.Order())

	shares := make(map[int]*big.Int, t)
	for i := 0; i < t; i++ {
		zi := PartialSign(grp, nonces[i], bindingFactors[ids[i]], lambda[i], e, sjSel[i], Ry)
		shares[ids[i]] = zi
	}

	return AggregateSignatureShares(Rx, Ry, shares, grp)
}
