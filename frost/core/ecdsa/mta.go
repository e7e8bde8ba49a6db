package ecdsa

import (
	"crypto/rand"
	"io"
	"math/big"
)

// MtAAliceStep1 is Alice's outgoing message in a multiplicative-to-additive
// conversion: the Paillier encryption of her value a, under her own key.
// She keeps a (and her private key) to herself.
func MtAAliceStep1(pubA *PaillierPublicKey, a *big.Int, rnd io.Reader) (ciphertext *big.Int, err error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	aMod := new(big.Int).Mod(a, pubA.N)
	return pubA.Encrypt(aMod, rnd)
}

// MtABobStep computes Bob's response given Alice's ciphertext Enc_A(a) and
// his own value b: he returns Enc_A(a*b + r) for a random mask r (under
// Alice's public key, via the homomorphic scalar-mul-then-add property) and
// keeps beta = -r mod fieldOrder as his own additive share.
func MtABobStep(pubA *PaillierPublicKey, encA *big.Int, b *big.Int, fieldOrder *big.Int, rnd io.Reader) (response *big.Int, beta *big.Int, err error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	// r is drawn from the Paillier plaintext space, not the (much smaller)
	// EC scalar field, so the mask statistically hides a*b from Alice once
	// she decrypts alpha = a*b + r mod N — she only learns alpha mod
	// fieldOrder after both sides reduce their shares mod fieldOrder.
	r, err := rand.Int(rnd, pubA.N)
	if err != nil {
		return nil, nil, err
	}
	bMod := new(big.Int).Mod(b, pubA.N)
	scaled := pubA.HomomorphicScalarMul(encA, bMod)
	response, err = pubA.EncryptAndAdd(scaled, r, rnd)
	if err != nil {
		return nil, nil, err
	}
	beta = new(big.Int).Neg(r)
	beta.Mod(beta, fieldOrder)
	return response, beta, nil
}

// MtAAliceStep2 is Alice's final step: decrypt Bob's response and reduce
// mod fieldOrder to get her additive share alpha, such that
// alpha + beta = a*b mod fieldOrder.
func MtAAliceStep2(privA *PaillierPrivateKey, response *big.Int, fieldOrder *big.Int) (alpha *big.Int, err error) {
	raw, err := privA.Decrypt(response)
	if err != nil {
		return nil, err
	}
	alpha = new(big.Int).Mod(raw, fieldOrder)
	return alpha, nil
}
