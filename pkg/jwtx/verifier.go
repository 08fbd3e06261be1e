// Package jwtx verifies third-party signed tokens against statically
// configured trust material with an explicit algorithm allow-list.
//
// Unlike a full resource-server verifier it deliberately skips claim
// validation: token lifetime is enforced server-side by the gatekeeper's
// token cache, not by whatever exp the issuer stamped into the token.
package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrSignatureInvalid is the single outcome for every verification failure:
// malformed token, disallowed algorithm, unknown key, bad signature. Callers
// must not branch on the underlying cause (all of them end in the same
// re-authentication redirect); the wrapped detail exists for logging.
var ErrSignatureInvalid = errors.New("jwtx: signature invalid")

// Algorithms the verifier knows how to allow-list.
var knownAlgorithms = map[string]struct{}{
	"HS256": {}, "HS384": {}, "HS512": {},
	"RS256": {}, "RS384": {}, "RS512": {},
	"ES256": {}, "ES384": {}, "ES512": {},
	"EdDSA": {},
}

// Verifier checks a token's cryptographic signature. Pure function of the
// token and the configured trust material; never blocks.
type Verifier interface {
	Verify(token string) error
}

// AllowListVerifier verifies compact JWS tokens signed by an external
// identity provider. Tokens signed with an algorithm outside the allow-list
// are rejected even when the signature would check out under that algorithm;
// that is the whole point of the list (algorithm confusion).
type AllowListVerifier struct {
	trust  TrustMaterial
	parser *jwt.Parser
}

// New builds a verifier from trust material and a non-empty algorithm
// allow-list. Construction fails on an empty or unknown list, or when the
// material can't back one of the listed algorithms, so a misconfiguration
// surfaces at startup rather than as a 100% redirect rate in production.
func New(trust TrustMaterial, algorithms []string) (*AllowListVerifier, error) {
	if len(algorithms) == 0 {
		return nil, errors.New("jwtx: algorithm allow-list must not be empty")
	}
	for _, alg := range algorithms {
		if _, ok := knownAlgorithms[alg]; !ok {
			return nil, fmt.Errorf("jwtx: unknown algorithm %q", alg)
		}
		if !trust.Supports(alg) {
			return nil, fmt.Errorf("jwtx: no trust material for algorithm %q", alg)
		}
	}

	return &AllowListVerifier{
		trust: trust,
		parser: jwt.NewParser(
			jwt.WithValidMethods(algorithms),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// Verify checks the token signature. Any failure collapses into
// ErrSignatureInvalid with the underlying cause wrapped for log lines.
func (v *AllowListVerifier) Verify(token string) error {
	_, err := v.parser.Parse(token, func(t *jwt.Token) (any, error) {
		return v.trust.keyFor(t.Method.Alg())
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return nil
}

// DecodeClaims extracts the claims without verifying anything. Strictly a
// logging aid (e.g. tagging a request with the token subject); never use
// the result for an authorization decision.
func DecodeClaims(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return claims, nil
}
