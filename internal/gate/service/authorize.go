package service

import (
	"fmt"
	"net/url"
)

// BuildAuthorizeURL constructs the provider authorize-endpoint URL an
// unauthenticated bearer is redirected to, per the authorization-code flow:
// the configured endpoint plus client_id and response_type=code. Built once
// at startup; query parameters already present on the endpoint survive.
func BuildAuthorizeURL(endpoint, clientID string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("service: parse authorize endpoint: %w", err)
	}

	q := u.Query()
	q.Set("client_id", clientID)
	q.Set("response_type", "code")
	u.RawQuery = q.Encode()

	return u.String(), nil
}
