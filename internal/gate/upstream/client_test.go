package upstream_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/upstream"
	"github.com/stretchr/testify/require"
)

func tokenPayload() domain.TokenPair {
	return domain.TokenPair{
		AccessToken:      "new-access",
		ExpiresIn:        300,
		RefreshToken:     "new-refresh",
		RefreshExpiresIn: 1800,
		Scope:            "openid",
		TokenType:        "Bearer",
	}
}

func TestExchangeCodePostsForm(t *testing.T) {
	t.Parallel()

	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Contains(t, r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
		require.NoError(t, r.ParseForm())

		gotForm = map[string]string{
			"client_id":     r.Form.Get("client_id"),
			"client_secret": r.Form.Get("client_secret"),
			"grant_type":    r.Form.Get("grant_type"),
			"code":          r.Form.Get("code"),
		}
		_ = json.NewEncoder(w).Encode(tokenPayload())
	}))
	t.Cleanup(srv.Close)

	client := &upstream.TokenEndpointClient{
		Endpoint:     srv.URL,
		ClientID:     "gatekeeper",
		ClientSecret: "hunter2",
	}

	res, err := client.ExchangeCode(context.Background(), "auth-code-abc")
	require.NoError(t, err)
	require.False(t, res.Rejected())
	require.Equal(t, tokenPayload(), *res.Pair)
	require.Equal(t, http.StatusOK, res.Status)

	require.Equal(t, map[string]string{
		"client_id":     "gatekeeper",
		"client_secret": "hunter2",
		"grant_type":    "authorization_code",
		"code":          "auth-code-abc",
	}, gotForm)
}

func TestRefreshPostsRefreshToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		require.Equal(t, "old-refresh", r.Form.Get("refresh_token"))
		_ = json.NewEncoder(w).Encode(tokenPayload())
	}))
	t.Cleanup(srv.Close)

	client := &upstream.TokenEndpointClient{Endpoint: srv.URL, ClientID: "gatekeeper"}

	res, err := client.Refresh(context.Background(), domain.TokenPair{
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
	})
	require.NoError(t, err)
	require.Equal(t, "new-access", res.Pair.AccessToken)
}

func TestProviderRejectionCarriesStatusAndBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	t.Cleanup(srv.Close)

	client := &upstream.TokenEndpointClient{Endpoint: srv.URL}

	res, err := client.ExchangeCode(context.Background(), "stale-code")
	require.NoError(t, err)
	require.True(t, res.Rejected())
	require.Equal(t, http.StatusBadRequest, res.Status)
	require.JSONEq(t, `{"error":"invalid_grant"}`, string(res.Body))
}

func TestTransportFailureIsAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	client := &upstream.TokenEndpointClient{Endpoint: srv.URL}

	_, err := client.ExchangeCode(context.Background(), "code")
	require.Error(t, err)
}

func TestMalformedPayloadIsAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token": ""}`))
	}))
	t.Cleanup(srv.Close)

	client := &upstream.TokenEndpointClient{Endpoint: srv.URL}

	_, err := client.ExchangeCode(context.Background(), "code")
	require.Error(t, err)
}
