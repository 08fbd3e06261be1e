package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVerifyWithoutTokenRedirectsToProvider(t *testing.T) {
	gate := newTestGate(t)

	rec := httptest.NewRecorder()
	gate.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/verify", nil))

	resp := rec.Result()
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	require.Equal(t, testAuthorizeURL, resp.Header.Get("Location"))
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}

func TestVerifyWithForgedTokenRedirects(t *testing.T) {
	gate := newTestGate(t)

	req := httptest.NewRequest(http.MethodGet, "/verify", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: "not.a.jwt"})

	rec := httptest.NewRecorder()
	gate.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	require.Zero(t, gate.upstream.refreshCalls)
}

func TestVerifyFreshSessionViaCookie(t *testing.T) {
	gate := newTestGate(t)

	token := signToken(t, "alice")
	require.NoError(t, gate.cache.Save(context.Background(), pairFor(token)))

	req := httptest.NewRequest(http.MethodGet, "/verify", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: token})

	rec := httptest.NewRecorder()
	gate.router.ServeHTTP(rec, req)

	resp := rec.Result()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	// A fresh hit never reissues the cookie.
	require.Nil(t, sessionCookie(t, resp))
}

func TestVerifyFreshSessionViaBearerHeader(t *testing.T) {
	gate := newTestGate(t)

	token := signToken(t, "alice")
	require.NoError(t, gate.cache.Save(context.Background(), pairFor(token)))

	req := httptest.NewRequest(http.MethodGet, "/verify", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	gate.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestVerifyCookieWinsOverBearerHeader(t *testing.T) {
	gate := newTestGate(t)

	cookieToken := signToken(t, "cookie-user")
	require.NoError(t, gate.cache.Save(context.Background(), pairFor(cookieToken)))

	// The header carries a token nobody cached. If the cookie wins, the
	// request is authenticated; if the header won, it would redirect.
	req := httptest.NewRequest(http.MethodGet, "/verify", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: cookieToken})
	req.Header.Set("Authorization", "Bearer "+signToken(t, "header-user"))

	rec := httptest.NewRecorder()
	gate.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestVerifySoftExpiredSessionIsRefreshed(t *testing.T) {
	gate := newTestGate(t)

	token := signToken(t, "alice")
	old := pairFor(token)
	require.NoError(t, gate.cache.Save(context.Background(), old))
	gate.redis.FastForward(time.Duration(old.ExpiresIn+1) * time.Second)

	renewed := pairFor(signToken(t, "alice-renewed"))
	gate.upstream.refreshResult = okResult(renewed)

	req := httptest.NewRequest(http.MethodGet, "/verify", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: token})

	rec := httptest.NewRecorder()
	gate.router.ServeHTTP(rec, req)

	resp := rec.Result()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	c := sessionCookie(t, resp)
	require.NotNil(t, c, "refresh must rotate the session cookie")
	require.Equal(t, renewed.AccessToken, c.Value)
	require.True(t, c.HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, c.SameSite)
	require.Equal(t, "/", c.Path)
	require.Zero(t, c.MaxAge)

	// The rotated cookie authenticates without another refresh.
	req = httptest.NewRequest(http.MethodGet, "/verify", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: c.Value})
	rec = httptest.NewRecorder()
	gate.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, gate.upstream.refreshCalls)
}

func TestVerifyFailedRefreshRedirects(t *testing.T) {
	gate := newTestGate(t)

	token := signToken(t, "alice")
	old := pairFor(token)
	require.NoError(t, gate.cache.Save(context.Background(), old))
	gate.redis.FastForward(time.Duration(old.ExpiresIn+1) * time.Second)

	gate.upstream.refreshResult = upstreamRejection(http.StatusBadRequest, `{"error":"invalid_grant"}`)

	req := httptest.NewRequest(http.MethodGet, "/verify", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: token})

	rec := httptest.NewRecorder()
	gate.router.ServeHTTP(rec, req)

	resp := rec.Result()
	// Mid-session provider failures downgrade to a plain re-login redirect.
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	require.Equal(t, testAuthorizeURL, resp.Header.Get("Location"))
	require.Nil(t, sessionCookie(t, resp))
}

func TestVerifyCacheCorruptionReturns500(t *testing.T) {
	gate := newTestGate(t)

	token := signToken(t, "alice")
	require.NoError(t, gate.redis.Set("refresh_"+token,
		`{"access_token":"somebody-else","expires_in":300,"refresh_token":"r","refresh_expires_in":1800}`))

	req := httptest.NewRequest(http.MethodGet, "/verify", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: token})

	rec := httptest.NewRecorder()
	gate.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "server_error")
}
