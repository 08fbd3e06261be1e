package jwtx

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoTrustMaterial means the material has neither a public key nor a
	// shared secret for the algorithms it is asked to back.
	ErrNoTrustMaterial = errors.New("jwtx: no trust material for algorithm")

	// ErrBadPEM reports unparseable key material.
	ErrBadPEM = errors.New("jwtx: invalid PEM key material")
)

// TrustMaterial holds the verification keys loaded once at process start.
// Asymmetric algorithms (RS*, ES*, EdDSA) verify against the public key,
// HS* against the shared secret. Immutable after construction, safe for
// concurrent use.
type TrustMaterial struct {
	public any // *rsa.PublicKey | *ecdsa.PublicKey | ed25519.PublicKey
	secret []byte
}

// TrustFromPEM parses a PEM-encoded public key (PKIX "PUBLIC KEY", PKCS1
// "RSA PUBLIC KEY", or a certificate) into TrustMaterial.
func TrustFromPEM(data []byte) (TrustMaterial, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return TrustMaterial{}, ErrBadPEM
	}

	var (
		key any
		err error
	)
	switch block.Type {
	case "RSA PUBLIC KEY":
		key, err = x509.ParsePKCS1PublicKey(block.Bytes)
	case "CERTIFICATE":
		var cert *x509.Certificate
		cert, err = x509.ParseCertificate(block.Bytes)
		if err == nil {
			key = cert.PublicKey
		}
	default:
		key, err = x509.ParsePKIXPublicKey(block.Bytes)
	}
	if err != nil {
		return TrustMaterial{}, fmt.Errorf("%w: %v", ErrBadPEM, err)
	}

	switch key.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
		return TrustMaterial{public: key}, nil
	default:
		return TrustMaterial{}, fmt.Errorf("%w: unsupported key type %T", ErrBadPEM, key)
	}
}

// TrustFromSecret wraps a shared HMAC secret for HS* verification.
func TrustFromSecret(secret []byte) TrustMaterial {
	return TrustMaterial{secret: append([]byte(nil), secret...)}
}

// keyFor returns the verification key backing the given algorithm name,
// or ErrNoTrustMaterial when the material can't serve it.
func (tm TrustMaterial) keyFor(alg string) (any, error) {
	if strings.HasPrefix(alg, "HS") {
		if len(tm.secret) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoTrustMaterial, alg)
		}
		return tm.secret, nil
	}
	if tm.public == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoTrustMaterial, alg)
	}
	return tm.public, nil
}

// Supports reports whether the material can back the given algorithm name.
// Used at startup to fail fast on a misconfigured allow-list.
func (tm TrustMaterial) Supports(alg string) bool {
	_, err := tm.keyFor(alg)
	return err == nil
}

// IsReady reports whether any trust material is loaded at all.
func (tm TrustMaterial) IsReady() bool {
	return tm.public != nil || len(tm.secret) > 0
}
