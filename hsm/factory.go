package hsm

import (
	"fmt"

	"frostcustody/config"
)

// New builds the Provider named by cfg.Type.
func New(cfg config.KeyProviderConfig) (Provider, error) {
	switch cfg.Type {
	case "plaintext":
		return NewPlaintextProviderFromHex(cfg.MasterSeedHex, cfg.Pin)
	case "pkcs11":
		return NewPKCS11Provider(cfg.PKCS11Library, cfg.Slot, cfg.Pin, cfg.KeyLabel)
	default:
		return nil, fmt.Errorf("hsm: unknown key provider type %q", cfg.Type)
	}
}
