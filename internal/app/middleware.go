package app

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/sitedesk-erp/sitedesk/internal/platform/httpx"
	"github.com/sitedesk-erp/sitedesk/internal/shared"
	"github.com/sitedesk-erp/sitedesk/internal/users"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger *slog.Logger
	Config *Config
}

// MiddlewareStack installs the SiteDesk middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}

	return []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
		httprate.Limit(120, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
	}
}

// ActorMiddleware resolves the X-User-ID header to an Actor and attaches it
// to the request context. Requests without the header pass through; handlers
// that need an identity reject them.
func ActorMiddleware(svc *users.Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("X-User-ID")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			id, err := strconv.ParseInt(header, 10, 64)
			if err != nil || id <= 0 {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "X-User-ID must be a positive integer")
				return
			}
			user, err := svc.GetUser(r.Context(), id)
			if err != nil {
				logger.Warn("actor lookup failed", slog.Int64("user_id", id), slog.Any("error", err))
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "unknown user")
				return
			}
			if !user.IsActive {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "account disabled")
				return
			}
			actor := user.Actor()
			ctx := shared.ContextWithActor(r.Context(), &actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
