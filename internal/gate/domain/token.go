package domain

// TokenPair is a single issuance from the identity provider's token endpoint:
// the short-lived access token plus the longer-lived refresh token that backs
// it. A pair is immutable once issued; a refresh mints a brand new pair with
// new token strings, it never mutates this one.
type TokenPair struct {
	AccessToken string `json:"access_token"`

	// ExpiresIn is the access token lifetime in seconds, as declared by the
	// provider at issuance time.
	ExpiresIn int `json:"expires_in"`

	RefreshToken string `json:"refresh_token"`

	// RefreshExpiresIn is the refresh token lifetime in seconds. The provider
	// guarantees it outlives ExpiresIn, otherwise silent renewal would be
	// impossible.
	RefreshExpiresIn int `json:"refresh_expires_in"`

	// Scope and TokenType are passthrough metadata; the gatekeeper never
	// interprets them.
	Scope     string `json:"scope,omitempty"`
	TokenType string `json:"token_type,omitempty"` // typically "Bearer"
}
