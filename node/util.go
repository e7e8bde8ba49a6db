package node

import (
	"encoding/hex"
	"fmt"

	"frostcustody/frost/core/curve"
)

func hexEncode(b []byte) string { return hex.EncodeToString(b) }

func hexDecode(s string) ([]byte, error) { return hex.DecodeString(s) }

// parseCurveTag validates a path segment against the three supported
// ciphersuite tags before it reaches curve.ForTag, so an unknown tag comes
// back as a clean 400 rather than a generic lookup error.
func parseCurveTag(s string) (curve.Tag, error) {
	switch curve.Tag(s) {
	case curve.TagSchnorrSecp256k1, curve.TagECDSASecp256k1, curve.TagEd25519:
		return curve.Tag(s), nil
	default:
		return "", fmt.Errorf("node: unknown curve tag %q", s)
	}
}
