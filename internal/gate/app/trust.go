package app

import (
	"errors"
	"fmt"
	"os"

	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
)

// loadTrustMaterial resolves the configured verification material. A key file
// wins over a shared secret when both are set; asymmetric deployments are the
// norm and a leftover secret in the environment shouldn't change behavior.
func loadTrustMaterial(cfg Config) (jwtx.TrustMaterial, error) {
	if cfg.PublicKeyFile != "" {
		data, err := os.ReadFile(cfg.PublicKeyFile)
		if err != nil {
			return jwtx.TrustMaterial{}, fmt.Errorf("read public key file: %w", err)
		}
		trust, err := jwtx.TrustFromPEM(data)
		if err != nil {
			return jwtx.TrustMaterial{}, fmt.Errorf("parse %s: %w", cfg.PublicKeyFile, err)
		}
		return trust, nil
	}

	if cfg.HMACSecret != "" {
		return jwtx.TrustFromSecret([]byte(cfg.HMACSecret)), nil
	}

	return jwtx.TrustMaterial{}, errors.New(
		"no trust material configured: set GATE_PUBLIC_KEY_FILE or GATE_HMAC_SECRET")
}
