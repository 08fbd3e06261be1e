// Package upstream talks to the identity provider's token endpoint. It owns
// the two exchanges the gatekeeper ever performs: authorization code for a
// fresh pair, and refresh token for a renewed pair. No retries, no backoff;
// the lifecycle service decides what a failure means.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
)

// Cap on how much of a provider response we buffer. Token payloads are tiny;
// anything bigger is a misbehaving provider.
const maxResponseBytes = 1 << 20

// Result is the outcome of a token-endpoint exchange that got an HTTP
// response. Pair is nil when the provider answered with a non-success
// status; Status and Body then carry the provider's verbatim answer so the
// callback path can relay it.
type Result struct {
	Pair   *domain.TokenPair
	Status int
	Body   []byte
}

// Rejected reports whether the provider answered but declined the exchange.
func (r Result) Rejected() bool { return r.Pair == nil }

// Client is the gatekeeper's view of the identity provider. A transport-level
// failure (no response at all) is returned as a non-nil error; an HTTP error
// response is a Rejected Result with a nil error. Callers treat both as
// exchange failure but log them apart.
type Client interface {
	ExchangeCode(ctx context.Context, code string) (Result, error)
	Refresh(ctx context.Context, pair domain.TokenPair) (Result, error)
}

// TokenEndpointClient implements Client against a real OIDC provider.
type TokenEndpointClient struct {
	Endpoint     string // the provider's token endpoint URL
	ClientID     string
	ClientSecret string

	// HTTP is the transport; nil means a client with a sane default timeout.
	HTTP *http.Client
}

// ExchangeCode trades a one-time authorization code for a token pair.
func (c *TokenEndpointClient) ExchangeCode(ctx context.Context, code string) (Result, error) {
	return c.post(ctx, url.Values{
		"client_id":     {c.ClientID},
		"client_secret": {c.ClientSecret},
		"grant_type":    {"authorization_code"},
		"code":          {code},
	})
}

// Refresh trades the pair's refresh token for a brand new pair.
func (c *TokenEndpointClient) Refresh(ctx context.Context, pair domain.TokenPair) (Result, error) {
	return c.post(ctx, url.Values{
		"client_id":     {c.ClientID},
		"client_secret": {c.ClientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {pair.RefreshToken},
	})
}

func (c *TokenEndpointClient) post(ctx context.Context, form url.Values) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, fmt.Errorf("upstream: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("upstream: token endpoint unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("upstream: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Status: resp.StatusCode, Body: body}, nil
	}

	var pair domain.TokenPair
	if err := json.Unmarshal(body, &pair); err != nil {
		return Result{}, fmt.Errorf("upstream: decode token payload: %w", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return Result{}, fmt.Errorf("upstream: token payload missing required fields")
	}

	return Result{Pair: &pair, Status: resp.StatusCode, Body: body}, nil
}

func (c *TokenEndpointClient) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: 10 * time.Second}
}
