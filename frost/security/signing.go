// Package security holds cryptographic helpers shared by the node and both
// aggregators that sit outside the FROST/DKG math itself: request/response
// integrity signing, share encryption for DKG transport, and replay guards.
package security

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"
)

// Envelope is the canonical shape signed by SignEnvelope/VerifyEnvelope: an
// aggregator-to-node request or a node response body, addressed and
// sequenced independently of whatever HTTP path carries it.
type Envelope struct {
	From    string
	To      string
	Kind    string
	Payload []byte
	JobID   string
	Seq     uint64
	Sig     []byte
}

// SignMessage signs an arbitrary message digest with the process identity
// key (a plain, non-HSM ECDSA key distinct from any threshold key share).
func SignMessage(privateKey *ecdsa.PrivateKey, msg []byte) ([]byte, error) {
	hash := sha256.Sum256(msg)

	r, s, err := ecdsa.Sign(nil, privateKey, hash[:])
	if err != nil {
		return nil, fmt.Errorf("sign failed: %w", err)
	}

	sig := make([]byte, 64)
	rBytes := r.Bytes()
	sBytes := s.Bytes()
	copy(sig[32-len(rBytes):32], rBytes)
	copy(sig[64-len(sBytes):64], sBytes)

	return sig, nil
}

// VerifyMessage verifies a signature produced by SignMessage.
func VerifyMessage(publicKey *ecdsa.PublicKey, msg, sig []byte) bool {
	if len(sig) != 64 {
		return false
	}

	hash := sha256.Sum256(msg)

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])

	return ecdsa.Verify(publicKey, hash[:], r, s)
}

// SignEnvelope signs an Envelope in place, clearing any prior signature
// before hashing so verification is independent of who last touched Sig.
func SignEnvelope(privateKey *ecdsa.PrivateKey, env *Envelope) error {
	env.Sig = nil

	sig, err := SignMessage(privateKey, serializeEnvelopeForSigning(env))
	if err != nil {
		return err
	}

	env.Sig = sig
	return nil
}

// VerifyEnvelope verifies an Envelope's signature, restoring env.Sig
// afterward regardless of outcome.
func VerifyEnvelope(publicKey *ecdsa.PublicKey, env *Envelope) bool {
	if len(env.Sig) == 0 {
		return false
	}

	sig := env.Sig
	env.Sig = nil
	msgToSign := serializeEnvelopeForSigning(env)
	env.Sig = sig

	return VerifyMessage(publicKey, msgToSign, sig)
}

func serializeEnvelopeForSigning(env *Envelope) []byte {
	h := sha256.New()
	h.Write([]byte(env.From))
	h.Write([]byte(env.To))
	h.Write([]byte(env.Kind))
	h.Write(env.Payload)
	h.Write([]byte(env.JobID))
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], env.Seq)
	h.Write(seqBuf[:])
	return h.Sum(nil)
}

// BindTemplateHash binds a PSBT template hash to a signing job ID, so a
// node can be certain the template it is about to sign over is the one the
// aggregator committed to at job creation.
func BindTemplateHash(jobID string, templateHash []byte) []byte {
	h := sha256.New()
	h.Write([]byte("frost_template_binding"))
	h.Write([]byte(jobID))
	h.Write(templateHash)
	return h.Sum(nil)
}

// VerifyTemplateBinding checks a template hash against the one bound at job
// creation.
func VerifyTemplateBinding(jobID string, expectedHash, actualHash []byte) bool {
	expected := BindTemplateHash(jobID, expectedHash)
	actual := BindTemplateHash(jobID, actualHash)

	if len(expected) != len(actual) {
		return false
	}

	for i := range expected {
		if expected[i] != actual[i] {
			return false
		}
	}
	return true
}
