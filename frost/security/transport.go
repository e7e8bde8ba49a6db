package security

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"

	"frostcustody/rng"
)

// transportKeyInfo is the HKDF info string binding a node's DKG transport
// identity to its HSM signature, kept apart from the share-store AEAD key
// and every nonce-handle key so compromising one reveals nothing about the
// others.
const transportKeyInfo = "dkg-transport-identity"

// DeriveTransportKey derives a node's long-lived secp256k1 ECIES identity
// from an HSM signature over a fixed label. Every node derives this once
// per label and re-derives it identically after a restart — it is never
// stored, so there is nothing at rest to steal beyond the HSM itself.
func DeriveTransportKey(hsmSignature []byte) (priv []byte, pub []byte, err error) {
	priv, err = rng.DeriveKey(hsmSignature, transportKeyInfo, 32)
	if err != nil {
		return nil, nil, fmt.Errorf("security: derive transport key: %w", err)
	}
	privKey, _ := btcec.PrivKeyFromBytes(priv)
	pub = privKey.PubKey().SerializeCompressed()
	return priv, pub, nil
}
