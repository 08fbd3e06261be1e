package http

import (
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/gatesdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// VerifyHandler serves GET /verify, the forward-auth endpoint every proxied
// request is checked against.
type VerifyHandler struct {
	Lifecycle     *service.LifecycleService
	CookieName    string
	SecureCookies bool
}

// ServeHTTP godoc
//
//	@Summary		Verify Endpoint
//	@Description	Decides whether the bearer of this request is authenticated. Reads the access
//	@Description	token from the session cookie, falling back to the Authorization header.
//	@Description	A soft-expired session is refreshed silently; the renewed token arrives via Set-Cookie.
//	@Tags			Gate
//	@Produce		json
//	@Success		200	{string}	string					"authenticated; Set-Cookie present when the session was refreshed"
//	@Failure		307	{string}	string					"not authenticated; Location points at the provider's authorize endpoint"
//	@Failure		500	{object}	gatesdk.ErrorResponse	"error, error_description"
//	@Header			200	{string}	Cache-Control			"no-store"
//	@Router			/verify [get].
func (h *VerifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := requestToken(r, h.CookieName)

	out := h.Lifecycle.Verify(r.Context(), token)
	switch out.Kind {
	case service.OutcomeAuthorized:
		if out.SetCookie {
			setTokenCookie(w, h.CookieName, out.AccessToken, h.SecureCookies)
		}
		httpx.NoCache(w)
		w.WriteHeader(http.StatusOK)

	case service.OutcomeRedirect:
		httpx.NoCache(w)
		http.Redirect(w, r, out.RedirectURL, http.StatusTemporaryRedirect)

	case service.OutcomeIntegrityError:
		gatesdk.ErrCacheIntegrity.WriteError(w)

	default:
		slogx.FromContext(r.Context()).Error("unexpected verify outcome", "kind", out.Kind)
		gatesdk.ErrServerError.WriteError(w)
	}
}

// requestToken pulls the access token off the request: the session cookie
// wins, the Authorization header is the fallback for cookieless callers.
func requestToken(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return httpx.BearerToken(r)
}

// setTokenCookie writes the session cookie. No Max-Age on purpose: the cache
// TTLs bound the session's lifetime, and a browser holding a dead cookie just
// gets redirected back through the provider.
func setTokenCookie(w http.ResponseWriter, name, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	})
}
