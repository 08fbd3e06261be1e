package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/service"
	redisdriver "github.com/aussiebroadwan/gatekeeper/internal/gate/store/drivers/redis"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/upstream"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
)

const (
	testSecret       = "handler-test-secret"
	testCookieName   = "access_token"
	testAuthorizeURL = "https://idp.example.com/authorize?client_id=gatekeeper&response_type=code"
)

// scriptedUpstream answers with whatever the test planted.
type scriptedUpstream struct {
	exchangeResult upstream.Result
	exchangeErr    error
	refreshResult  upstream.Result
	refreshErr     error

	exchangeCalls int
	refreshCalls  int
}

func (u *scriptedUpstream) ExchangeCode(ctx context.Context, code string) (upstream.Result, error) {
	u.exchangeCalls++
	return u.exchangeResult, u.exchangeErr
}

func (u *scriptedUpstream) Refresh(ctx context.Context, pair domain.TokenPair) (upstream.Result, error) {
	u.refreshCalls++
	return u.refreshResult, u.refreshErr
}

type testGate struct {
	router   *Router
	redis    *miniredis.Miniredis
	upstream *scriptedUpstream
	cache    *redisdriver.Store
}

// newTestGate wires a full router over miniredis, an HS256 verifier and a
// scripted provider, mirroring production wiring minus the listener.
func newTestGate(t *testing.T) *testGate {
	t.Helper()

	mr := miniredis.RunT(t)
	cache := redisdriver.NewStoreWithClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = cache.Close() })

	trust := jwtx.TrustFromSecret([]byte(testSecret))
	verifier, err := jwtx.New(trust, []string{"HS256"})
	require.NoError(t, err)

	idp := &scriptedUpstream{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := NewRouter(trust, "test", cache, testCookieName, false, logger)
	router.LifecycleService = &service.LifecycleService{
		Verifier:     verifier,
		Cache:        cache,
		Upstream:     idp,
		AuthorizeURL: testAuthorizeURL,
	}
	router.ApplyRoutes()

	return &testGate{router: router, redis: mr, upstream: idp, cache: cache}
}

func signToken(t *testing.T, sub string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub}).
		SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func pairFor(accessToken string) domain.TokenPair {
	return domain.TokenPair{
		AccessToken:      accessToken,
		ExpiresIn:        300,
		RefreshToken:     "refresh-" + accessToken,
		RefreshExpiresIn: 1800,
		TokenType:        "Bearer",
	}
}

func okResult(pair domain.TokenPair) upstream.Result {
	return upstream.Result{Pair: &pair, Status: http.StatusOK}
}

func upstreamRejection(status int, body string) upstream.Result {
	return upstream.Result{Status: status, Body: []byte(body)}
}

// sessionCookie digs the gatekeeper's cookie out of a response.
func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == testCookieName {
			return c
		}
	}
	return nil
}
