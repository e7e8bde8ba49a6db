// Package rng derives deterministic randomness from a single HSM
// signature, per the seed formula:
//
//	seed = SHA256(hsm_signature || purpose_tag || context)
//
// and exposes it as a ChaCha20-keyed io.Reader that the node's DKG round-1
// polynomial (dkg.GenerateRound1) and its Paillier key generation consume
// exactly like crypto/rand.Reader. Two runs with the same HSM key, the same
// purpose, and the same context always produce the same bytes — what lets
// a crashed-and-restarted node recompute the same DKG round-1 output
// instead of forking the protocol. FROST signing nonces are not drawn from
// here: the node's round1 handler draws them from crypto/rand.
package rng

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"
)

// Purpose tags the deterministic-randomness call site so that two unrelated
// operations signing the same label never collide on the same seed.
type Purpose string

const (
	PurposeDKGPolynomial Purpose = "dkg-polynomial"
	PurposeNonceSchnorr  Purpose = "frost-nonce-schnorr"
	PurposeNonceECDSA    Purpose = "frost-nonce-ecdsa"
	PurposeNonceEd25519  Purpose = "frost-nonce-ed25519"
	PurposePaillierKey   Purpose = "ecdsa-paillier-keygen"
)

// Seed derives a 32-byte deterministic seed from an HSM signature over a
// label plus a purpose tag and free-form context bytes (round number,
// participant id, message hash — whatever disambiguates this call from any
// other sharing the same purpose).
func Seed(hsmSignature []byte, purpose Purpose, context ...[]byte) [32]byte {
	h := sha256.New()
	h.Write(hsmSignature)
	h.Write([]byte(purpose))
	for _, c := range context {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(c)))
		h.Write(lenBuf[:])
		h.Write(c)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Reader returns a deterministic byte stream keyed by seed. Two Readers
// built from the same seed emit byte-identical streams; this is the core
// property DKG polynomial and Paillier key derivation depend on for
// determinism.
//
// ChaCha20 requires a nonce alongside its key; we use the zero nonce since
// the key itself (the seed) is never reused across purposes or contexts —
// see Seed's domain separation.
func Reader(seed [32]byte) io.Reader {
	var nonce [chacha20.NonceSize]byte
	c, err := chacha20.NewUnauthenticatedCipher(seed[:], nonce[:])
	if err != nil {
		// chacha20.NewUnauthenticatedCipher only fails on malformed
		// key/nonce lengths, which are both fixed-size arrays here.
		panic(err)
	}
	return &cipherReader{c: c}
}

type cipherReader struct {
	c *chacha20.Cipher
}

func (r *cipherReader) Read(p []byte) (int, error) {
	zero := make([]byte, len(p))
	r.c.XORKeyStream(p, zero)
	return len(p), nil
}

// DeriveKey stretches an HSM signature into an independent AEAD key via
// HKDF-SHA256, keyed by info so that, e.g., the share store's encryption
// key and the DKG transport identity key never collapse to the same bytes
// even if both were derived from the same underlying HSM signature.
func DeriveKey(hsmSignature []byte, info string, length int) ([]byte, error) {
	r := hkdf.New(sha256.New, hsmSignature, nil, []byte(info))
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}
