package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sitedesk-erp/sitedesk/internal/masterdata/projects"
	"github.com/sitedesk-erp/sitedesk/internal/masterdata/suppliers"
	"github.com/sitedesk-erp/sitedesk/internal/procure"
	"github.com/sitedesk-erp/sitedesk/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	UsersService    *users.Service
	ProcureHandler  *procure.Handler
	SupplierHandler *suppliers.Handler
	ProjectHandler  *projects.Handler
	UsersHandler    *users.Handler
}

// NewRouter constructs the chi.Router with SiteDesk defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(ActorMiddleware(params.UsersService, params.Logger))

		params.ProcureHandler.MountRoutes(r)
		if params.SupplierHandler != nil {
			params.SupplierHandler.MountRoutes(r)
		}
		if params.ProjectHandler != nil {
			params.ProjectHandler.MountRoutes(r)
		}
		if params.UsersHandler != nil {
			params.UsersHandler.MountRoutes(r)
		}
	})

	return r
}
