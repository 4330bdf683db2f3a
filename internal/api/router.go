package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"gridlake/internal/config"
	"gridlake/internal/middleware"
)

// NewRouter builds the full HTTP router: public health endpoint, then the
// /v1 API behind request-ID, CORS, rate-limit, and (when configured) auth
// middleware.
func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(middleware.RateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		if cfg.AuthEnabled() {
			r.Use(middleware.Auth([]byte(cfg.JWTSecret), cfg.APIKey))
		}

		r.Route("/datasets", func(r chi.Router) {
			r.Post("/", h.createDataset)
			r.Get("/", h.listDatasets)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", h.getDataset)
				r.Delete("/", h.deleteDataset)
				r.Get("/describe", h.describeDataset)
				r.Get("/preview", h.previewDataset)
				r.Post("/frame", h.runFrame)
				r.Post("/frame/sql", h.compileFrame)
				r.Post("/exports", h.createExport)
				r.Get("/report", h.getReport)
			})
		})

		r.Get("/exports", h.listExports)

		r.Route("/recipes", func(r chi.Router) {
			r.Post("/", h.createRecipe)
			r.Get("/", h.listRecipes)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", h.getRecipe)
				r.Patch("/", h.updateRecipe)
				r.Delete("/", h.deleteRecipe)
				r.Post("/run", h.runRecipe)
			})
		})
	})

	return r
}
