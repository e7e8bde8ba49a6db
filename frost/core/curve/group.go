// Package curve defines a uniform elliptic-curve group interface shared by
// the three FROST ciphersuites (Schnorr/secp256k1, ECDSA/secp256k1, Ed25519).
package curve

import "math/big"

// Point is a generic affine point representation. For curves whose native
// point encoding does not decompose into (X, Y) big.Int coordinates
// (Ed25519), the concrete Group implementation is responsible for a
// consistent internal mapping; callers outside the curve package must only
// round-trip Points through the same Group's own methods.
type Point struct{ X, Y *big.Int }

func (p Point) XY() (*big.Int, *big.Int) { return p.X, p.Y }

// Group is the capability set every ciphersuite's elliptic curve must
// implement: order, modulus, and the scalar/point arithmetic the DKG and
// FROST signing math is built from.
type Group interface {
	// Order returns the group order (the scalar field size).
	Order() *big.Int

	// Modulus returns the base field prime.
	Modulus() *big.Int

	// BitSize returns the curve's security bit size.
	BitSize() int

	ScalarBaseMult(k *big.Int) Point
	ScalarMult(P Point, k *big.Int) Point
	Add(P, Q Point) Point
	ScalarBaseMultBytes(k []byte) Point
	ScalarMultBytes(P Point, k []byte) Point

	// SerializePoint returns the ciphersuite's canonical compressed
	// encoding of P. Serialization must be bit-exact across nodes.
	SerializePoint(P Point) []byte

	// DecompressPoint parses a point from its canonical encoding. Returns
	// the zero Point if data does not encode a valid point.
	DecompressPoint(data []byte) Point
}

// Tag identifies one of the three supported ciphersuites, matching the
// curve path segment used in the node's HTTP surface.
type Tag string

const (
	TagSchnorrSecp256k1 Tag = "schnorr-secp256k1"
	TagECDSASecp256k1   Tag = "ecdsa-secp256k1"
	TagEd25519          Tag = "ed25519"
)

// ForTag returns the Group implementation for a curve tag. Schnorr and
// ECDSA over secp256k1 share the same underlying group; they differ in
// ciphersuite (challenge function, signature/serialization format), not in
// the group itself.
func ForTag(tag Tag) (Group, error) {
	switch tag {
	case TagSchnorrSecp256k1, TagECDSASecp256k1:
		return NewSecp256k1Group(), nil
	case TagEd25519:
		return NewEd25519Group(), nil
	default:
		return nil, ErrUnknownCurve
	}
}
