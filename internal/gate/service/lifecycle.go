package service

import (
	"context"
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/store"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/upstream"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
	"golang.org/x/sync/singleflight"
)

var errRefreshFailed = errors.New("service: refresh failed")

// LifecycleService is the token lifecycle state machine. It holds no
// per-request state; everything cross-request lives in the cache, so any
// number of requests may run through one instance concurrently.
type LifecycleService struct {
	Verifier jwtx.Verifier
	Cache    store.TokenCache
	Upstream upstream.Client

	// AuthorizeURL is the fully-built provider authorize URL every
	// unauthenticated bearer is redirected to.
	AuthorizeURL string

	// refreshGroup coalesces concurrent refreshes of the same soft-expired
	// token: one upstream call, one cache save, shared by every waiter.
	// Purely an optimization; each verify stays independent.
	refreshGroup singleflight.Group
}

// Verify runs the state machine for a single presented token:
//
//	no token / bad signature / cache miss  -> Redirect
//	fresh cache hit                        -> Authorized (cookie untouched)
//	soft-expired hit, refresh succeeds     -> Authorized (cookie updated)
//	soft-expired hit, refresh fails        -> Redirect
//	cached pair contradicts presented token -> IntegrityError
func (s *LifecycleService) Verify(ctx context.Context, token string) Outcome {
	log := slogx.FromContext(ctx)

	if token == "" {
		return redirect(s.AuthorizeURL)
	}

	if err := s.Verifier.Verify(token); err != nil {
		// Expected traffic (stale cookies, bots), not an error condition.
		log.Debug("token signature rejected", "err", err)
		return redirect(s.AuthorizeURL)
	}

	pair, softExpired, err := s.Cache.Lookup(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return redirect(s.AuthorizeURL)
	}
	if err != nil {
		// Fail closed: an unreachable cache means we can't vouch for anyone.
		log.Warn("cache lookup failed", "err", err)
		return redirect(s.AuthorizeURL)
	}

	if pair.AccessToken != token {
		log.Error("cache integrity violation: cached pair does not match presented token")
		return Outcome{Kind: OutcomeIntegrityError}
	}

	if !softExpired {
		return authorized()
	}

	newPair, err := s.refresh(ctx, token, *pair)
	if err != nil {
		// Whatever went wrong upstream, a user mid-session gets sent back to
		// re-authenticate rather than shown a provider error.
		return redirect(s.AuthorizeURL)
	}
	return authorizedWithCookie(newPair.AccessToken)
}

// Callback completes the authorization-code flow: exchange the one-time code
// for a pair, cache it, hand the access token back for the cookie. Provider
// failures are relayed verbatim; this is setup time and the caller needs
// the full diagnostic detail.
func (s *LifecycleService) Callback(ctx context.Context, code string) Outcome {
	log := slogx.FromContext(ctx)

	res, err := s.Upstream.ExchangeCode(ctx, code)
	if err != nil {
		log.Error("code exchange transport failure", "err", err)
		return upstreamError(http.StatusBadGateway, nil)
	}
	if res.Rejected() {
		log.Warn("provider rejected code exchange",
			"status", res.Status, "body", snippet(res.Body))
		return upstreamError(res.Status, res.Body)
	}

	// The code is burnt either way, so the save must not be skipped because
	// the original caller hung up.
	if err := s.Cache.Save(context.WithoutCancel(ctx), *res.Pair); err != nil {
		log.Error("cache save after code exchange failed", "err", err)
		return Outcome{Kind: OutcomeServerError}
	}

	log.Info("token pair issued",
		"sub", tokenSubject(res.Pair.AccessToken),
		"access_ttl_s", res.Pair.ExpiresIn, "refresh_ttl_s", res.Pair.RefreshExpiresIn)
	return authorizedWithCookie(res.Pair.AccessToken)
}

// refresh silently renews a soft-expired pair, coalescing concurrent callers
// on the same token. Only the winning caller's context reaches the wire; a
// completed exchange is always cached, even if every waiter has gone away.
func (s *LifecycleService) refresh(
	ctx context.Context,
	token string,
	pair domain.TokenPair,
) (*domain.TokenPair, error) {
	log := slogx.FromContext(ctx)

	v, err, shared := s.refreshGroup.Do(token, func() (any, error) {
		res, err := s.Upstream.Refresh(ctx, pair)
		if err != nil {
			log.Warn("token refresh transport failure", "err", err)
			return nil, errRefreshFailed
		}
		if res.Rejected() {
			log.Warn("provider rejected token refresh",
				"status", res.Status, "body", snippet(res.Body))
			return nil, errRefreshFailed
		}

		if err := s.Cache.Save(context.WithoutCancel(ctx), *res.Pair); err != nil {
			log.Error("cache save after refresh failed", "err", err)
			return nil, errRefreshFailed
		}

		log.Info("token pair refreshed",
			"access_ttl_s", res.Pair.ExpiresIn, "refresh_ttl_s", res.Pair.RefreshExpiresIn)
		return res.Pair, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug("token refresh coalesced with concurrent request")
	}
	return v.(*domain.TokenPair), nil
}

// tokenSubject pulls the sub claim out of a token for log lines only. The
// token is already trusted by the time this runs (it came from the provider).
func tokenSubject(token string) string {
	claims, err := jwtx.DecodeClaims(token)
	if err != nil {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}

// snippet keeps provider bodies log-safe: bounded and valid UTF-8.
func snippet(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		body = body[:maxLen]
	}
	if !utf8.Valid(body) {
		return "<binary>"
	}
	return string(body)
}
