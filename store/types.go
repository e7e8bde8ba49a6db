package store

import "frostcustody/frost/core/curve"

// KeyPackage is one node's durable output of a completed DKG: its signing
// share plus enough group context (verifying shares, group public key,
// threshold) to take part in signing without recontacting the other
// participants for anything but nonces and partial signatures.
type KeyPackage struct {
	Curve           curve.Tag        `json:"curve"`
	ParticipantID   int              `json:"participantId"`
	MinSigners      int              `json:"minSigners"`
	MaxSigners      int              `json:"maxSigners"`
	SigningShare    []byte           `json:"signingShare"`
	GroupPublicKey  []byte           `json:"groupPublicKey"`
	VerifyingShares map[int][]byte   `json:"verifyingShares"`
}

// PublicKeyPackage is the public half of a completed DKG: everything an
// aggregator needs to verify partial signatures and address requests
// without ever holding a signing share.
type PublicKeyPackage struct {
	Curve           curve.Tag      `json:"curve"`
	GroupPublicKey  []byte         `json:"groupPublicKey"`
	VerifyingShares map[int][]byte `json:"verifyingShares"`
}
