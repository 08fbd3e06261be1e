package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"

	_ "github.com/aussiebroadwan/gatekeeper/api/gate" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	trust        jwtx.TrustMaterial
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	cache         store.TokenCache
	cookieName    string
	secureCookies bool

	LifecycleService *service.LifecycleService
}

func NewRouter(
	trust jwtx.TrustMaterial,
	buildVersion string,
	cache store.TokenCache,
	cookieName string,
	secureCookies bool,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:           http.NewServeMux(),
		trust:         trust,
		buildVersion:  buildVersion,
		startTime:     time.Now(),
		cache:         cache,
		cookieName:    cookieName,
		secureCookies: secureCookies,
		logger:        logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerVerify()
	r.registerCallback()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Gatekeeper Token Verification API
//	@version		0.1.0
//	@description	Sidecar that guards upstream services behind an OIDC provider: verifies
//	@description	bearer tokens against a short-lived cache, silently refreshes soft-expired
//	@description	sessions, and completes the authorization-code flow on the provider's behalf.
//
//	@contact.name	AussieBroadWAN Team
//	@contact.url	https://github.com/aussiebroadwan/gatekeeper
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerVerify() {
	h := &VerifyHandler{
		Lifecycle:     r.LifecycleService,
		CookieName:    r.cookieName,
		SecureCookies: r.secureCookies,
	}

	// GET /verify - lenient rate limit (every proxied request lands here)
	r.Mux.Handle("GET /verify",
		httpx.Chain(h,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerCallback() {
	h := &CallbackHandler{
		Lifecycle:     r.LifecycleService,
		CookieName:    r.cookieName,
		SecureCookies: r.secureCookies,
	}

	// Callback - strict rate limit (a legitimate client hits this once per
	// session; anything chatty is probing). GET also covers HEAD.
	secured := httpx.Chain(h,
		httpx.RateLimitByIP(httpx.StrictLimit),
	)
	r.Mux.Handle("GET /oidc/callback", secured)
	r.Mux.Handle("POST /oidc/callback", secured)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.cache, r.trust),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
