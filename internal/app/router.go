package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/farmapos/farmapos/internal/auth"
	"github.com/farmapos/farmapos/internal/shared"
)

// RouteMounter is implemented by module handlers that attach themselves to
// the API router.
type RouteMounter interface {
	MountRoutes(r chi.Router)
}

// RouterParams aggregates the handlers mounted on the API.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	AuthHandler      *auth.Handler
	CatalogHandler   RouteMounter
	InventoryHandler RouteMounter
	PromotionHandler RouteMounter
	SalesHandler     RouteMounter
	CustomerHandler  RouteMounter
	ReportHandler    RouteMounter
	JobHandler       RouteMounter
}

// NewRouter builds the HTTP router. Everything under /api/v1 except login
// requires a session.
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

	r.Route("/api/v1", func(r chi.Router) {
		if params.AuthHandler != nil {
			params.AuthHandler.MountPublicRoutes(r)
		}

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(params.SessionManager))

			if params.AuthHandler != nil {
				params.AuthHandler.MountRoutes(r)
			}
			for _, h := range []RouteMounter{
				params.CatalogHandler,
				params.InventoryHandler,
				params.PromotionHandler,
				params.SalesHandler,
				params.CustomerHandler,
				params.ReportHandler,
			} {
				if h != nil {
					h.MountRoutes(r)
				}
			}
		})
	})

	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			params.JobHandler.MountRoutes(r)
		})
	}

	return r
}
