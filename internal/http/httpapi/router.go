package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"hostforge/internal/http/handlers"
	"hostforge/internal/infra"
	"hostforge/internal/middleware"
)

// NewRouter assembles the public API surface. The health endpoint stays
// unauthenticated; everything else requires a bearer token.
func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
		middleware.CORS(cfg.CORSAllowedOrigins),
		middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
	)

	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthBearer(cfg.APIAuthSecret))

		r.Route("/v1/projects", func(r chi.Router) {
			r.Post("/", app.CreateProject)
			r.Get("/{id}", app.GetProject)
			r.Get("/{id}/jobs", app.ListProjectJobs)
			r.Post("/{id}/jobs", app.CreateJob)
			r.Get("/{id}/allowance", app.GetAllowance)
		})
		r.Route("/v1/jobs", func(r chi.Router) {
			r.Get("/{id}", app.GetJob)
			r.Get("/{id}/logs", app.GetJobLogs)
		})
		r.Get("/v1/domains/check", app.CheckDomains)
		r.Post("/v1/usage", app.RecordUsage)
	})

	return r
}
