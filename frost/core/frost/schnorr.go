package frost

import (
	"crypto/sha256"
	"math/big"

	"frostcustody/frost/core/curve"

	"github.com/btcsuite/btcd/btcec/v2"
)

// rfc6979ExtraDataV0 is SHA256("BIP-340"), the extra-data tag btcsuite's own
// schnorr.Sign mixes into its RFC6979 nonce derivation. Matching it lets
// single-signer SchnorrSign output agree byte-for-byte with btcsuite for the
// non-threshold case, which the test suite checks against.
var rfc6979ExtraDataV0 = [32]byte{
	0xa3, 0xeb, 0x4c, 0x18, 0x2f, 0xae, 0x7e, 0xf4,
	0xe8, 0x10, 0xc6, 0xee, 0x13, 0xb0, 0xe9, 0x26,
	0x68, 0x6d, 0x71, 0xe8, 0x7f, 0x39, 0x4f, 0x79,
	0x9c, 0x00, 0xa5, 0x21, 0x03, 0xcb, 0x4e, 0x17,
}

// SchnorrSign produces a single-signer BIP-340 signature. x is the
// secp256k1 private scalar, m the 32-byte message digest.
func SchnorrSign(grp curve.Group, x *big.Int, m []byte) (Rx, Ry, z, k *big.Int) {
	if len(m) != 32 {
		panic("BIP-340: message must be a 32-byte hash")
	}
	n := grp.Order()

	d := new(big.Int).Set(x)
	Px, Py := grp.ScalarBaseMult(d).XY()
	if Py.Bit(0) == 1 {
		d.Sub(n, d)
	}

	priv32 := make([]byte, 32)
	copy(priv32[32-len(d.Bytes()):], d.Bytes())

	var kScalar *btcec.ModNScalar
	for iter := uint32(0); ; iter++ {
		kScalar = btcec.NonceRFC6979(priv32, m, rfc6979ExtraDataV0[:], nil, iter)
		if !kScalar.IsZero() {
			break
		}
	}

	var kArr [32]byte
	kScalar.PutBytes(&kArr)
	kInt := new(big.Int).SetBytes(kArr[:])

	Rx, Ry = grp.ScalarBaseMultBytes(kArr[:]).XY()
	if Ry.Bit(0) == 1 {
		kInt.Sub(n, kInt)
		kBytes := kInt.FillBytes(make([]byte, 32))
		Rx, Ry = grp.ScalarBaseMultBytes(kBytes).XY()
	}

	eBytes := taggedHash("BIP0340/challenge", pad32(Rx), pad32(Px), m)
	e := new(big.Int).SetBytes(eBytes)
	e.Mod(e, n)

	z = new(big.Int).Mul(e, d)
	z.Add(z, kInt)
	z.Mod(z, n)

	return Rx, Ry, z, kInt
}

// taggedHash implements BIP-340 domain separation:
// SHA256(SHA256(tag) || SHA256(tag) || data...)
func taggedHash(tag string, data ...[]byte) []byte {
	tagSum := sha256.Sum256([]byte(tag))
	h := sha256.New()
	h.Write(tagSum[:])
	h.Write(tagSum[:])
	for _, b := range data {
		h.Write(b)
	}
	return h.Sum(nil)
}

// SchnorrVerify checks a BIP-340 signature (Rx, Ry, z) over message m
// against public key (Xx, Xy).
func SchnorrVerify(grp curve.Group, Xx, Xy, Rx, Ry, z *big.Int, m []byte) bool {
	n := grp.Order()
	if len(m) != 32 || Ry.Bit(0) == 1 {
		return false
	}

	if Xy.Bit(0) == 1 {
		Xy = new(big.Int).Sub(grp.Modulus(), Xy)
	}
	eBytes := taggedHash("BIP0340/challenge", pad32(Rx), pad32(Xx), m)
	e := new(big.Int).SetBytes(eBytes)
	e.Mod(e, n)

	GzX, GzY := grp.ScalarBaseMultBytes(z.Bytes()).XY()
	X := curve.Point{X: Xx, Y: Xy}
	eX := grp.ScalarMultBytes(X, e.Bytes())
	R := curve.Point{X: Rx, Y: Ry}
	sumX, sumY := grp.Add(R, eX).XY()

	return GzX.Cmp(sumX) == 0 && GzY.Cmp(sumY) == 0
}
