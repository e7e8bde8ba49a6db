package frost

import (
	"crypto/sha256"
	"crypto/sha512"
	"math/big"

	"frostcustody/frost/core/curve"
)

// BIP340Challenge implements the BIP-340 tagged-hash challenge function:
// e = SHA256(SHA256("BIP0340/challenge") || SHA256("BIP0340/challenge") || Rx || Px || msg) mod n
func BIP340Challenge(Rx, Px *big.Int, msg []byte, grp curve.Group) *big.Int {
	tagHash := sha256.Sum256([]byte("BIP0340/challenge"))

	h := sha256.New()
	h.Write(tagHash[:])
	h.Write(tagHash[:])

	pad32 := func(b *big.Int) []byte {
		out := make([]byte, 32)
		bb := b.Bytes()
		copy(out[32-len(bb):], bb)
		return out
	}
	h.Write(pad32(Rx))
	h.Write(pad32(Px))
	h.Write(msg) // msg is already a 32-byte digest

	e := new(big.Int).SetBytes(h.Sum(nil))
	e.Mod(e, grp.Order())
	return e
}

// Ed25519Challenge implements RFC 8032's Ed25519 challenge function:
// e = SHA-512(R || A || msg) mod L, so the aggregated threshold signature
// is byte-compatible with any standard Ed25519 verifier. Rx and Px hold the
// curve package's 32-byte compressed point encodings (see
// Ed25519Group.toPoint), not affine X coordinates — padded to 32 bytes in
// case a leading zero byte was trimmed off by big.Int.
func Ed25519Challenge(Rx, Px *big.Int, msg []byte, grp curve.Group) *big.Int {
	h := sha512.New()
	h.Write(pad32(Rx))
	h.Write(pad32(Px))
	h.Write(msg)

	e := new(big.Int).SetBytes(reverseBytes(h.Sum(nil)))
	e.Mod(e, grp.Order())
	return e
}

func pad32(b *big.Int) []byte {
	out := make([]byte, 32)
	bb := b.Bytes()
	copy(out[32-len(bb):], bb)
	return out
}

// reverseBytes flips a byte slice so a little-endian Ed25519 scalar hash
// output can be loaded into a big-endian big.Int consistently with
// Ed25519Group's own byte-order convention (see curve.reverse).
func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, j := 0, len(b)-1; i < len(b); i, j = i+1, j-1 {
		out[i] = b[j]
	}
	return out
}
