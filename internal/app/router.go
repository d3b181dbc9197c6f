package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gatehouse-app/gatehouse/internal/access"
	"github.com/gatehouse-app/gatehouse/internal/admin"
	"github.com/gatehouse-app/gatehouse/internal/auth"
	"github.com/gatehouse-app/gatehouse/internal/observability"
	"github.com/gatehouse-app/gatehouse/internal/pages"
	"github.com/gatehouse-app/gatehouse/internal/platform/httpx"
	"github.com/gatehouse-app/gatehouse/internal/shared"
	"github.com/gatehouse-app/gatehouse/internal/site"
	"github.com/gatehouse-app/gatehouse/internal/view"
	"github.com/gatehouse-app/gatehouse/jobs"
	"github.com/gatehouse-app/gatehouse/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Guard          access.Guard
	AuthHandler    *auth.Handler
	SiteHandler    *site.Handler
	AdminHandler   *admin.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with the full middleware stack
// and every page route behind its access guard.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(params.Guard.Require(pages.HomePath))
		r.Get("/", params.SiteHandler.Home)
	})

	r.Group(func(r chi.Router) {
		r.Use(params.Guard.Require(pages.StateScenariosPath))
		r.Get(pages.StateScenariosPath, params.SiteHandler.StateScenarios)
		r.Post(pages.StateScenariosPath, params.SiteHandler.StateScenariosSubmit)
	})

	r.Route(pages.UserAdminPath, func(r chi.Router) {
		r.Use(params.Guard.Require(pages.UserAdminPath))
		params.AdminHandler.MountRoutes(r)
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		// Static files skip the session and CSRF layers entirely.
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers so
// browsers keep assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
