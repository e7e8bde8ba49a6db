// Chain-specific address encoding is explicitly out of this service's
// scope — it is treated as an external collaborator with only its edge
// (group public key in, address string out) specified. This file is that
// edge: a thin ChainEncoder boundary plus one concrete encoder per
// ciphersuite, enough to exercise the real encoding libraries the three
// chain families actually use, without taking on transaction building,
// fee estimation, or any other chain-specific concern.
package address

import (
	"fmt"

	"frostcustody/frost/core/curve"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg"
	"golang.org/x/crypto/sha3"
)

// ChainEncoder turns a curve's group public key into that chain's address
// string. Implementations never see a signing share or private key
// material — only the public key the address aggregator already fetched.
type ChainEncoder interface {
	Curve() curve.Tag
	Encode(groupPubKey []byte) (string, error)
}

// registry maps a chain identifier (as named in an
// /api/address/generate request) to its encoder.
var registry = map[string]ChainEncoder{
	"btc": btcTaprootEncoder{},
	"eth": ethKeccakEncoder{},
	"sol": solBase58Encoder{},
}

// EncoderFor resolves a chain name to its encoder, or an error for a
// chain this deployment does not support.
func EncoderFor(chain string) (ChainEncoder, error) {
	enc, ok := registry[chain]
	if !ok {
		return nil, fmt.Errorf("address: unsupported chain %q", chain)
	}
	return enc, nil
}

// btcTaprootEncoder produces a bech32m-encoded Taproot (P2TR) address from
// a BIP-340 x-only group public key, grounded on the key-path-spend
// Taproot construction this service's Schnorr ciphersuite targets —
// adapted to use btcutil's real bech32m implementation rather than a
// hand-rolled decoder (see DESIGN.md).
type btcTaprootEncoder struct{}

func (btcTaprootEncoder) Curve() curve.Tag { return curve.TagSchnorrSecp256k1 }

func (btcTaprootEncoder) Encode(groupPubKey []byte) (string, error) {
	grp, err := curve.ForTag(curve.TagSchnorrSecp256k1)
	if err != nil {
		return "", err
	}
	p := grp.DecompressPoint(groupPubKey)
	if p.X == nil {
		return "", fmt.Errorf("address: invalid secp256k1 group public key")
	}
	witnessProgram := make([]byte, 32)
	p.X.FillBytes(witnessProgram)

	addr, err := btcutil.NewAddressTaproot(witnessProgram, &chaincfg.MainNetParams)
	if err != nil {
		return "", fmt.Errorf("address: encode taproot address: %w", err)
	}
	return addr.EncodeAddress(), nil
}

// ethKeccakEncoder produces the standard 20-byte, 0x-prefixed hex address
// Ethereum derives from an uncompressed secp256k1 public key.
type ethKeccakEncoder struct{}

func (ethKeccakEncoder) Curve() curve.Tag { return curve.TagECDSASecp256k1 }

func (ethKeccakEncoder) Encode(groupPubKey []byte) (string, error) {
	grp, err := curve.ForTag(curve.TagECDSASecp256k1)
	if err != nil {
		return "", err
	}
	p := grp.DecompressPoint(groupPubKey)
	if p.X == nil {
		return "", fmt.Errorf("address: invalid secp256k1 group public key")
	}
	uncompressed := make([]byte, 64)
	p.X.FillBytes(uncompressed[:32])
	p.Y.FillBytes(uncompressed[32:])

	h := sha3.NewLegacyKeccak256()
	h.Write(uncompressed)
	digest := h.Sum(nil)

	return fmt.Sprintf("0x%x", digest[len(digest)-20:]), nil
}

// solBase58Encoder produces a Solana-style address: the raw Ed25519
// public key, base58-encoded with no checksum.
type solBase58Encoder struct{}

func (solBase58Encoder) Curve() curve.Tag { return curve.TagEd25519 }

func (solBase58Encoder) Encode(groupPubKey []byte) (string, error) {
	if len(groupPubKey) != 32 {
		return "", fmt.Errorf("address: expected a 32-byte Ed25519 public key, got %d bytes", len(groupPubKey))
	}
	return base58.Encode(groupPubKey), nil
}
