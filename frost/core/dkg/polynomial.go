package dkg

import (
	"crypto/rand"
	"io"
	"math/big"

	"frostcustody/frost/core/curve"
)

// randReader is the randomness source RandomScalar draws from. It defaults
// to crypto/rand.Reader; callers that need DKG coefficients reproducible
// across a crash/restart swap it (via WithReader) for a deterministic
// reader built from rng.Reader.
var randReader io.Reader = rand.Reader

// WithReader runs fn with RandomScalar drawing from r instead of the
// package default, then restores the previous reader. Not safe to call
// concurrently with itself — the DKG session owns serializing this per
// passphrase under its single-writer-per-passphrase rule.
func WithReader(r io.Reader, fn func()) {
	prev := randReader
	randReader = r
	defer func() { randReader = prev }()
	fn()
}

// RandomScalar draws a uniform value in [0, n).
func RandomScalar(n *big.Int) *big.Int {
	scalar, err := rand.Int(randReader, n)
	if err != nil {
		panic(err)
	}
	return scalar
}

// Polynomial is a degree-(t-1) polynomial over the group's scalar field,
// used as a participant's secret-sharing polynomial during DKG round 1.
type Polynomial struct {
	Coefficients []*big.Int // a_0, a_1, ..., a_(t-1)
}

// NewPolynomial draws a random degree-(t-1) polynomial. Coefficients[0] is
// the participant's secret contribution to the joint key.
func NewPolynomial(t int, grp curve.Group) *Polynomial {
	coeffs := make([]*big.Int, t)
	for i := 0; i < t; i++ {
		coeffs[i] = RandomScalar(grp.Order())
	}
	return &Polynomial{Coefficients: coeffs}
}

// Evaluate computes f(x) mod N.
func (p *Polynomial) Evaluate(x *big.Int, grp curve.Group) *big.Int {
	N := grp.Order()
	result := big.NewInt(0)
	temp := big.NewInt(1)
	for i, coef := range p.Coefficients {
		temp.Exp(x, big.NewInt(int64(i)), N)
		temp.Mul(temp, coef)
		temp.Mod(temp, N)
		result.Add(result, temp)
		result.Mod(result, N)
	}
	return result
}
