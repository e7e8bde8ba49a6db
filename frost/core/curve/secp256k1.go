package curve

import (
	"crypto/elliptic"
	"errors"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
)

// ErrUnknownCurve is returned by ForTag for an unrecognized curve tag.
var ErrUnknownCurve = errors.New("curve: unknown curve tag")

// Secp256k1Group wraps btcec.S256() behind the Group interface. It backs
// both the Schnorr/secp256k1 and ECDSA/secp256k1 ciphersuites.
type Secp256k1Group struct {
	curve elliptic.Curve
}

func NewSecp256k1Group() *Secp256k1Group {
	return &Secp256k1Group{curve: btcec.S256()}
}

func (g *Secp256k1Group) Order() *big.Int {
	return g.curve.Params().N
}

func (g *Secp256k1Group) ScalarBaseMult(k *big.Int) Point {
	x, y := g.curve.ScalarBaseMult(k.Bytes())
	return Point{X: x, Y: y}
}

func (g *Secp256k1Group) ScalarMult(P Point, k *big.Int) Point {
	x, y := g.curve.ScalarMult(P.X, P.Y, k.Bytes())
	return Point{X: x, Y: y}
}

func (g *Secp256k1Group) Add(P, Q Point) Point {
	x, y := g.curve.Add(P.X, P.Y, Q.X, Q.Y)
	return Point{X: x, Y: y}
}

func (g *Secp256k1Group) Modulus() *big.Int {
	return g.curve.Params().P
}

func (g *Secp256k1Group) BitSize() int {
	return g.curve.Params().BitSize
}

func (g *Secp256k1Group) ScalarBaseMultBytes(k []byte) Point {
	x, y := g.curve.ScalarBaseMult(k)
	return Point{X: x, Y: y}
}

func (g *Secp256k1Group) ScalarMultBytes(P Point, k []byte) Point {
	x, y := g.curve.ScalarMult(P.X, P.Y, k)
	return Point{X: x, Y: y}
}

// SerializePoint returns the 33-byte SEC1 compressed encoding: a one-byte
// parity prefix (0x02 even Y, 0x03 odd Y) followed by the 32-byte X
// coordinate.
func (g *Secp256k1Group) SerializePoint(P Point) []byte {
	if P.X == nil || P.Y == nil {
		return nil
	}
	out := make([]byte, 33)
	if P.Y.Bit(0) == 0 {
		out[0] = 0x02
	} else {
		out[0] = 0x03
	}
	xb := P.X.Bytes()
	copy(out[33-len(xb):], xb)
	return out
}

// DecompressPoint parses a point from its 33-byte SEC1 compressed encoding.
func (g *Secp256k1Group) DecompressPoint(data []byte) Point {
	if len(data) != 33 {
		return Point{}
	}
	pubKey, err := btcec.ParsePubKey(data)
	if err != nil {
		return Point{}
	}
	return Point{X: pubKey.X(), Y: pubKey.Y()}
}
