// ECIES encryption for DKG round-2 share transport.
// Ciphertext layout: ephemeralPubKey (33 bytes) || ciphertext (32 bytes) || mac (32 bytes).

package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
)

var (
	ErrInvalidCiphertext     = errors.New("invalid ciphertext format")
	ErrMacVerificationFailed = errors.New("mac verification failed")
	ErrInvalidPublicKey      = errors.New("invalid public key")
	ErrInvalidPrivateKey     = errors.New("invalid private key")
)

// ECIESCiphertext is the parsed form of an ECIES ciphertext.
type ECIESCiphertext struct {
	EphemeralPubKey []byte // 33-byte compressed public key
	Encrypted       []byte
	Mac             []byte // HMAC-SHA256
}

// ECIESEncrypt encrypts plaintext (typically a 32-byte DKG share) to
// recipientPubKey (33-byte compressed secp256k1 point) using randomness
// (32 bytes) as the ephemeral private key. Passing a rng-derived randomness
// value makes this deterministic, letting a dealer re-derive and re-verify
// the exact ciphertext it stored without keeping the ephemeral key around.
func ECIESEncrypt(recipientPubKey, plaintext, randomness []byte) ([]byte, error) {
	if len(recipientPubKey) != 33 {
		return nil, ErrInvalidPublicKey
	}
	if len(randomness) != 32 {
		return nil, errors.New("randomness must be 32 bytes")
	}

	pubKey, err := btcec.ParsePubKey(recipientPubKey)
	if err != nil {
		return nil, ErrInvalidPublicKey
	}

	var privKeyBytes [32]byte
	copy(privKeyBytes[:], randomness)
	ephemeralPriv := secp256k1PrivKeyFromBytes(privKeyBytes[:])

	ephemeralPub := ephemeralPriv.PubKey()
	ephemeralPubBytes := ephemeralPub.SerializeCompressed()

	// ECDH shared secret.
	sharedX, _ := btcec.S256().ScalarMult(pubKey.X(), pubKey.Y(), ephemeralPriv.Serialize())
	sharedSecret := sha256.Sum256(sharedX.Bytes())

	encKey := sharedSecret[:16]
	macKey := sharedSecret[16:]

	encrypted, err := aesCTREncrypt(encKey, plaintext)
	if err != nil {
		return nil, err
	}

	mac := computeHMAC(macKey, encrypted)

	result := make([]byte, 0, 33+len(encrypted)+32)
	result = append(result, ephemeralPubBytes...)
	result = append(result, encrypted...)
	result = append(result, mac...)

	return result, nil
}

// ECIESVerifyCiphertext re-derives the ciphertext from plaintext and
// randomness and compares it against a stored ciphertext, confirming both
// match without needing to decrypt.
func ECIESVerifyCiphertext(recipientPubKey, plaintext, randomness, ciphertext []byte) bool {
	recomputed, err := ECIESEncrypt(recipientPubKey, plaintext, randomness)
	if err != nil {
		return false
	}

	return bytes.Equal(recomputed, ciphertext)
}

func secp256k1PrivKeyFromBytes(privKeyBytes []byte) *btcec.PrivateKey {
	privKey, _ := btcec.PrivKeyFromBytes(privKeyBytes)
	return privKey
}

// aesCTREncrypt encrypts with a zero IV, safe here only because each
// derived encKey is used for exactly one plaintext.
func aesCTREncrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, aes.BlockSize)

	ciphertext := make([]byte, len(plaintext))
	stream := cipher.NewCTR(block, iv)
	stream.XORKeyStream(ciphertext, plaintext)

	return ciphertext, nil
}

func computeHMAC(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// ECIESDecrypt reverses ECIESEncrypt using the recipient's 32-byte
// secp256k1 private scalar, verifying the MAC before returning plaintext.
func ECIESDecrypt(privKey, ciphertext []byte, plaintextLen int) ([]byte, error) {
	parsed, err := ParseECIESCiphertext(ciphertext, plaintextLen)
	if err != nil {
		return nil, err
	}

	if len(privKey) != 32 {
		return nil, ErrInvalidPrivateKey
	}

	ephemeralPub, err := btcec.ParsePubKey(parsed.EphemeralPubKey)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}

	priv := secp256k1PrivKeyFromBytes(privKey)

	sharedX, _ := btcec.S256().ScalarMult(ephemeralPub.X(), ephemeralPub.Y(), priv.Serialize())
	sharedSecret := sha256.Sum256(sharedX.Bytes())

	encKey := sharedSecret[:16]
	macKey := sharedSecret[16:]

	expectedMac := computeHMAC(macKey, parsed.Encrypted)
	if !hmac.Equal(expectedMac, parsed.Mac) {
		return nil, ErrMacVerificationFailed
	}

	plaintext, err := aesCTREncrypt(encKey, parsed.Encrypted) // CTR decrypt == encrypt
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

// ParseECIESCiphertext splits a ciphertext blob of known plaintext length
// into its ephemeral pubkey, encrypted body, and MAC.
func ParseECIESCiphertext(ciphertext []byte, plaintextLen int) (*ECIESCiphertext, error) {
	expectedLen := 33 + plaintextLen + 32
	if len(ciphertext) != expectedLen {
		return nil, ErrInvalidCiphertext
	}

	return &ECIESCiphertext{
		EphemeralPubKey: ciphertext[:33],
		Encrypted:       ciphertext[33 : 33+plaintextLen],
		Mac:             ciphertext[33+plaintextLen:],
	}, nil
}

// VerifyShareAgainstCommitment checks a DKG round-2 share against the
// dealer's round-1 Feldman-VSS commitment points: g^share must equal
// Prod_k(A_ik ^ (receiverIndex^k)).
// share: 32-byte scalar. commitmentPoints: the dealer's A_ik points.
// receiverIndex: the receiving participant's index (1-based).
func VerifyShareAgainstCommitment(share []byte, commitmentPoints [][]byte, receiverIndex *big.Int) bool {
	if len(share) == 0 || len(commitmentPoints) == 0 {
		return false
	}

	shareInt := new(big.Int).SetBytes(share)
	gShareX, gShareY := btcec.S256().ScalarBaseMult(shareInt.Bytes())

	// expected = A_i0 * A_i1^x * A_i2^x^2 * ... * A_i(t-1)^x^(t-1), x = receiverIndex
	var expectedX, expectedY *big.Int

	xPower := big.NewInt(1)
	curve := btcec.S256()
	n := curve.Params().N

	for k, pointBytes := range commitmentPoints {
		pubKey, err := btcec.ParsePubKey(pointBytes)
		if err != nil {
			return false
		}

		termX, termY := curve.ScalarMult(pubKey.X(), pubKey.Y(), xPower.Bytes())

		if k == 0 {
			expectedX, expectedY = termX, termY
		} else {
			expectedX, expectedY = curve.Add(expectedX, expectedY, termX, termY)
		}

		xPower.Mul(xPower, receiverIndex)
		xPower.Mod(xPower, n)
	}

	return gShareX.Cmp(expectedX) == 0 && gShareY.Cmp(expectedY) == 0
}
