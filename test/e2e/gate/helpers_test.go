package gate_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	gatehttp "github.com/aussiebroadwan/gatekeeper/internal/gate/http"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/service"
	redisdriver "github.com/aussiebroadwan/gatekeeper/internal/gate/store/drivers/redis"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/upstream"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
)

/*
 * End-to-end tests for the gatekeeper against a real redis container and a
 * fake identity provider. The gatekeeper itself runs in-process; redis is the
 * only external moving part worth containerizing.
 */

const (
	e2eSecret     = "e2e-shared-secret"
	e2eCookieName = "access_token"
	e2eClientID   = "gatekeeper-e2e"
)

// setupRedisContainer starts a stock redis and returns its address.
func setupRedisContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForListeningPort("6379/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s/0", host, mappedPort.Port())
}

// fakeProvider is a minimal OIDC token endpoint: short-TTL pairs so the
// tests can watch a session soft-expire in real time.
type fakeProvider struct {
	server *httptest.Server

	accessTTL  int
	refreshTTL int
	issued     atomic.Int32
	refreshed  atomic.Int32
}

func newFakeProvider(t *testing.T, accessTTL, refreshTTL int) *fakeProvider {
	t.Helper()

	p := &fakeProvider{accessTTL: accessTTL, refreshTTL: refreshTTL}
	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		var sub string
		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			if r.PostForm.Get("code") != "good-code" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			p.issued.Add(1)
			sub = "e2e-user"
		case "refresh_token":
			p.refreshed.Add(1)
			sub = "e2e-user-refreshed"
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"unsupported_grant_type"}`))
			return
		}

		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": sub,
			"iat": time.Now().Unix(),
			"jti": fmt.Sprintf("%s-%d", sub, time.Now().UnixNano()),
		}).SignedString([]byte(e2eSecret))
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(domain.TokenPair{
			AccessToken:      token,
			ExpiresIn:        p.accessTTL,
			RefreshToken:     "refresh-" + token,
			RefreshExpiresIn: p.refreshTTL,
			TokenType:        "Bearer",
		})
	}))
	t.Cleanup(p.server.Close)
	return p
}

// setupGatekeeper wires the full stack over the given redis URL and provider
// and serves it from an httptest listener.
func setupGatekeeper(t *testing.T, redisURL string, provider *fakeProvider) *httptest.Server {
	t.Helper()

	cache, err := redisdriver.NewStore(redisURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	trust := jwtx.TrustFromSecret([]byte(e2eSecret))
	verifier, err := jwtx.New(trust, []string{"HS256"})
	require.NoError(t, err)

	authorizeURL, err := service.BuildAuthorizeURL(provider.server.URL+"/authorize", e2eClientID)
	require.NoError(t, err)

	router := gatehttp.NewRouter(trust, "e2e", cache, e2eCookieName, false,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	router.LifecycleService = &service.LifecycleService{
		Verifier: verifier,
		Cache:    cache,
		Upstream: &upstream.TokenEndpointClient{
			Endpoint:     provider.server.URL + "/token",
			ClientID:     e2eClientID,
			ClientSecret: "e2e-secret",
		},
		AuthorizeURL: authorizeURL,
	}
	router.ApplyRoutes()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

// noRedirects returns a client that surfaces 307s instead of following them.
func noRedirects() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func cookieValue(t *testing.T, resp *http.Response) string {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == e2eCookieName {
			return c.Value
		}
	}
	return ""
}
