// Package frost implements the three FROST ciphersuites' single- and
// threshold-signature math: BIP-340 Schnorr and ECDSA over secp256k1, and
// Ed25519.
package frost

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"errors"
	"math/big"

	"frostcustody/frost/core/curve"

	"github.com/btcsuite/btcd/btcec/v2"
)

var (
	ErrUnsupportedSignAlgo = errors.New("unsupported sign algorithm")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrInvalidPublicKey    = errors.New("invalid public key")
	ErrInvalidMessage      = errors.New("invalid message")
)

// Verify dispatches to the ciphersuite-specific verifier named by tag.
// pubkey and sig encodings are ciphersuite-specific; see each Verify*
// function's doc comment.
func Verify(tag curve.Tag, pubkey, msg, sig []byte) (bool, error) {
	switch tag {
	case curve.TagSchnorrSecp256k1:
		return VerifyBIP340(pubkey, msg, sig)
	case curve.TagECDSASecp256k1:
		return VerifyECDSASecp256k1(pubkey, msg, sig)
	case curve.TagEd25519:
		return VerifyEd25519(pubkey, msg, sig)
	default:
		return false, ErrUnsupportedSignAlgo
	}
}

// VerifyBIP340 verifies a BIP-340 Schnorr signature.
// pubkey: 32-byte x-only public key. msg: 32-byte message digest.
// sig: 64 bytes, R.x || s.
func VerifyBIP340(pubkey, msg, sig []byte) (bool, error) {
	if len(pubkey) != 32 {
		return false, ErrInvalidPublicKey
	}
	if len(msg) != 32 {
		return false, ErrInvalidMessage
	}
	if len(sig) != 64 {
		return false, ErrInvalidSignature
	}

	grp := curve.NewSecp256k1Group()
	Xx := new(big.Int).SetBytes(pubkey)

	Xy := recoverYFromX(grp, Xx, false)
	if Xy == nil {
		return false, ErrInvalidPublicKey
	}

	Rx := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])

	Ry := recoverYFromX(grp, Rx, false)
	if Ry == nil {
		return false, ErrInvalidSignature
	}

	return SchnorrVerify(grp, Xx, Xy, Rx, Ry, s, msg), nil
}

// recoverYFromX recovers a secp256k1 point's Y coordinate from X, choosing
// the even root unless odd is set. Returns nil if x is not on the curve.
func recoverYFromX(grp *curve.Secp256k1Group, x *big.Int, odd bool) *big.Int {
	p := grp.Modulus()

	x3 := new(big.Int).Mul(x, x)
	x3.Mod(x3, p)
	x3.Mul(x3, x)
	x3.Mod(x3, p)

	y2 := new(big.Int).Add(x3, big.NewInt(7))
	y2.Mod(y2, p)

	// secp256k1's p ≡ 3 (mod 4), so y = y2^((p+1)/4) mod p is a square root.
	exp := new(big.Int).Add(p, big.NewInt(1))
	exp.Rsh(exp, 2)
	y := new(big.Int).Exp(y2, exp, p)

	check := new(big.Int).Mul(y, y)
	check.Mod(check, p)
	if check.Cmp(y2) != 0 {
		return nil
	}

	if y.Bit(0) == 1 && !odd {
		y.Sub(p, y)
	} else if y.Bit(0) == 0 && odd {
		y.Sub(p, y)
	}

	return y
}

// VerifyECDSASecp256k1 verifies a secp256k1 ECDSA signature in the 65-byte
// (r, s, v) layout: r and s as 32-byte big-endian scalars, v as the
// best-effort recovery byte in {0, 1} (see DESIGN.md's
// "ECDSA recovery byte" decision — v is informational and never consulted
// here; verification always checks against the known group public key).
// pubkey: 33-byte SEC1 compressed point. msg: 32-byte message digest.
func VerifyECDSASecp256k1(pubkey, msg, sig []byte) (bool, error) {
	if len(pubkey) != 33 {
		return false, ErrInvalidPublicKey
	}
	if len(msg) != 32 {
		return false, ErrInvalidMessage
	}
	if len(sig) != 65 {
		return false, ErrInvalidSignature
	}

	btcPub, err := btcec.ParsePubKey(pubkey)
	if err != nil {
		return false, ErrInvalidPublicKey
	}
	stdPub := btcPub.ToECDSA()

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])

	return ecdsa.Verify(stdPub, msg, r, s), nil
}

// VerifyEd25519 verifies a standard (non-threshold-specific) Ed25519
// signature; FROST-Ed25519's aggregated signature is wire-compatible with
// the standard scheme, so no special-cased verifier is needed.
// pubkey: 32 bytes. sig: 64 bytes.
func VerifyEd25519(pubkey, msg, sig []byte) (bool, error) {
	if len(pubkey) != ed25519.PublicKeySize {
		return false, ErrInvalidPublicKey
	}
	if len(sig) != ed25519.SignatureSize {
		return false, ErrInvalidSignature
	}
	return ed25519.Verify(pubkey, msg, sig), nil
}
