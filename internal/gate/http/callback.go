package http

import (
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/gatesdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// CallbackHandler serves /oidc/callback, where the identity provider sends
// the browser back after a successful login.
type CallbackHandler struct {
	Lifecycle     *service.LifecycleService
	CookieName    string
	SecureCookies bool
}

// ServeHTTP godoc
//
//	@Summary		OIDC Callback Endpoint
//	@Description	Completes the authorization-code flow: exchanges the provider's one-time code
//	@Description	for a token pair, caches it, and establishes the session cookie.
//	@Description	Provider rejections are relayed with their original status and body.
//	@Tags			Gate
//	@Produce		json
//	@Param			code	query		string					true	"Authorization code issued by the provider"
//	@Success		200		{string}	string					"session established; Set-Cookie carries the access token"
//	@Failure		400		{object}	gatesdk.ErrorResponse	"error, error_description"
//	@Failure		500		{object}	gatesdk.ErrorResponse	"error, error_description"
//	@Failure		502		{object}	gatesdk.ErrorResponse	"error, error_description"
//	@Header			200		{string}	Cache-Control			"no-store"
//	@Router			/oidc/callback [get].
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" && r.Method == http.MethodPost {
		// Some providers POST the response parameters as a form instead.
		if err := r.ParseForm(); err == nil {
			code = r.PostForm.Get("code")
		}
	}
	if code == "" {
		// Malformed request; the provider is never contacted.
		gatesdk.ErrMissingCode.WriteError(w)
		return
	}

	out := h.Lifecycle.Callback(r.Context(), code)
	switch out.Kind {
	case service.OutcomeAuthorized:
		setTokenCookie(w, h.CookieName, out.AccessToken, h.SecureCookies)
		httpx.NoCache(w)
		w.WriteHeader(http.StatusOK)

	case service.OutcomeUpstreamError:
		relayUpstream(w, out)

	default:
		slogx.FromContext(r.Context()).Error("unexpected callback outcome", "kind", out.Kind)
		gatesdk.ErrServerError.WriteError(w)
	}
}

// relayUpstream passes a provider failure through verbatim. Callback time is
// setup time; whoever is wiring the client up needs the provider's own
// diagnostics, not a sanitized summary.
func relayUpstream(w http.ResponseWriter, out service.Outcome) {
	if len(out.Body) == 0 {
		gatesdk.NewOAuth2Error(out.Status, gatesdk.ErrorCodeServerError,
			"The identity provider could not be reached.").WriteError(w)
		return
	}

	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(out.Status)
	_, _ = w.Write(out.Body)
}
