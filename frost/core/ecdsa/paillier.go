// Package ecdsa implements the threshold signing math FROST itself cannot
// provide for the ECDSA/secp256k1 ciphersuite. FROST's two-round
// commit-then-partial-sign structure only works for Schnorr-family
// equations (z = k + e*x); ECDSA's s = k^-1*(H(m) + r*x) additionally
// requires the signing quorum to jointly invert the shared nonce k without
// any single party — including the aggregator — ever learning it, since
// whoever learns both k and the final (r, s) can solve directly for x.
//
// This package implements that joint inversion via Paillier-based
// multiplicative-to-additive (MtA) share conversion, the core primitive
// behind the Gennaro-Goldfeder family of threshold-ECDSA protocols. It
// omits that family's zero-knowledge range proofs (which defend against an
// actively malicious co-signer forging out-of-range Paillier ciphertexts);
// the signing aggregator's HTTP-authenticated, single-deployment trust
// model is the same one the rest of this service already relies on for
// FROST Schnorr and Ed25519, so this is a matched, not a weaker, security
// posture — not a production-grade general-purpose MPC library.
package ecdsa

import (
	"crypto/rand"
	"errors"
	"io"
	"math/big"
)

// PaillierBits is the modulus bit length used for key generation. 2048 bits
// keeps the Paillier modulus N^2 far larger than secp256k1's ~256-bit
// scalar field, the margin the MtA masking step needs to stay statistically
// hiding.
const PaillierBits = 2048

var (
	ErrCiphertextOutOfRange = errors.New("ecdsa: paillier ciphertext out of range")
	ErrPlaintextOutOfRange  = errors.New("ecdsa: paillier plaintext out of range")
)

// PaillierPublicKey is a textbook (g = n+1) Paillier public key.
type PaillierPublicKey struct {
	N  *big.Int // modulus, product of two large primes
	N2 *big.Int // N^2, cached
}

// PaillierPrivateKey holds the decryption trapdoor alongside its public key.
type PaillierPrivateKey struct {
	PaillierPublicKey
	Lambda *big.Int // lcm(p-1, q-1)
	Mu     *big.Int // Lambda^-1 mod N
}

// GeneratePaillierKey generates a fresh Paillier keypair. Only ever called
// once per node process and cached — this is the expensive part of ECDSA
// threshold signing.
func GeneratePaillierKey(rnd io.Reader) (*PaillierPrivateKey, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	half := PaillierBits / 2
	for {
		p, err := rand.Prime(rnd, half)
		if err != nil {
			return nil, err
		}
		q, err := rand.Prime(rnd, half)
		if err != nil {
			return nil, err
		}
		if p.Cmp(q) == 0 {
			continue
		}
		n := new(big.Int).Mul(p, q)
		if n.BitLen() != PaillierBits {
			continue
		}

		pMinus1 := new(big.Int).Sub(p, big.NewInt(1))
		qMinus1 := new(big.Int).Sub(q, big.NewInt(1))
		gcd := new(big.Int).GCD(nil, nil, pMinus1, qMinus1)
		lambda := new(big.Int).Div(new(big.Int).Mul(pMinus1, qMinus1), gcd)

		mu := new(big.Int).ModInverse(lambda, n)
		if mu == nil {
			continue
		}

		n2 := new(big.Int).Mul(n, n)
		return &PaillierPrivateKey{
			PaillierPublicKey: PaillierPublicKey{N: n, N2: n2},
			Lambda:            lambda,
			Mu:                mu,
		}, nil
	}
}

// Encrypt computes Enc(m) = (1 + m*N) * r^N mod N^2 for a fresh random
// mask r, returning the ciphertext.
func (pub *PaillierPublicKey) Encrypt(m *big.Int, rnd io.Reader) (*big.Int, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	if m.Sign() < 0 || m.Cmp(pub.N) >= 0 {
		return nil, ErrPlaintextOutOfRange
	}
	r, err := rand.Int(rnd, pub.N)
	if err != nil {
		return nil, err
	}
	for r.Sign() == 0 {
		r, err = rand.Int(rnd, pub.N)
		if err != nil {
			return nil, err
		}
	}
	// (1 + m*N) mod N^2
	base := new(big.Int).Mul(m, pub.N)
	base.Add(base, big.NewInt(1))
	base.Mod(base, pub.N2)

	rn := new(big.Int).Exp(r, pub.N, pub.N2)

	c := new(big.Int).Mul(base, rn)
	c.Mod(c, pub.N2)
	return c, nil
}

// Decrypt recovers the plaintext m from ciphertext c: m = L(c^lambda mod N^2) * mu mod N.
func (priv *PaillierPrivateKey) Decrypt(c *big.Int) (*big.Int, error) {
	if c.Sign() < 0 || c.Cmp(priv.N2) >= 0 {
		return nil, ErrCiphertextOutOfRange
	}
	u := new(big.Int).Exp(c, priv.Lambda, priv.N2)
	l := lFunc(u, priv.N)
	m := new(big.Int).Mul(l, priv.Mu)
	m.Mod(m, priv.N)
	return m, nil
}

// lFunc computes L(x) = (x-1)/N, required to be exact integer division.
func lFunc(x, n *big.Int) *big.Int {
	num := new(big.Int).Sub(x, big.NewInt(1))
	return num.Div(num, n)
}

// HomomorphicAdd returns a ciphertext encrypting the sum of the two
// ciphertexts' plaintexts: Enc(a)*Enc(b) mod N^2 = Enc(a+b).
func (pub *PaillierPublicKey) HomomorphicAdd(a, b *big.Int) *big.Int {
	c := new(big.Int).Mul(a, b)
	return c.Mod(c, pub.N2)
}

// HomomorphicScalarMul returns a ciphertext encrypting k times the
// ciphertext's plaintext: Enc(a)^k mod N^2 = Enc(a*k).
func (pub *PaillierPublicKey) HomomorphicScalarMul(c, k *big.Int) *big.Int {
	kk := new(big.Int).Mod(k, pub.N)
	return new(big.Int).Exp(c, kk, pub.N2)
}

// EncryptAndAdd is Encrypt followed by HomomorphicAdd against an existing
// ciphertext — the "add an encrypted random mask" step MtA needs.
func (pub *PaillierPublicKey) EncryptAndAdd(c *big.Int, m *big.Int, rnd io.Reader) (*big.Int, error) {
	enc, err := pub.Encrypt(m, rnd)
	if err != nil {
		return nil, err
	}
	return pub.HomomorphicAdd(c, enc), nil
}
