// Route registration and go-chi router setup.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/matiasleandrokruk/macrometer/internal/api/handlers"
	apmiddleware "github.com/matiasleandrokruk/macrometer/internal/api/middleware"
	"github.com/matiasleandrokruk/macrometer/internal/domain/nutrition"
	"github.com/matiasleandrokruk/macrometer/internal/version"
)

// deepHealthTimeout bounds the upstream probe behind /health?deep=1.
const deepHealthTimeout = 10 * time.Second

// HealthChecker probes the upstream model provider.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps are the services the HTTP API exposes. Built once at startup.
// Health is optional; without it /health?deep=1 answers like /health.
// CORSOrigins lists the browser origins allowed on /api/v1; empty disables CORS.
type Deps struct {
	Analyzer    handlers.DishAnalyzer
	Foods       nutrition.Finder
	Health      HealthChecker
	CORSOrigins []string
	Logger      *zap.Logger
}

type healthResponse struct {
	Status string       `json:"status"`
	Build  version.Info `json:"build"`
	Error  string       `json:"error,omitempty"`
}

// NewRouter creates and configures a new chi router with all routes.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (runs on all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apmiddleware.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)

	// Health check — used by load balancers and health probes.
	// ?deep=1 also checks the vision provider and answers 503 when it is unusable.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status, resp := http.StatusOK, healthResponse{Status: "ok", Build: version.Get()}
		if r.URL.Query().Get("deep") == "1" && deps.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), deepHealthTimeout)
			defer cancel()
			if err := deps.Health.HealthCheck(ctx); err != nil {
				status, resp.Status, resp.Error = http.StatusServiceUnavailable, "degraded", err.Error()
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	})

	dishHandler := handlers.NewDishHandler(deps.Analyzer)
	foodHandler := handlers.NewFoodHandler(deps.Foods)

	r.Route("/api/v1", func(r chi.Router) {
		if len(deps.CORSOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: deps.CORSOrigins,
				AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
				AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
				MaxAge:         300,
			}))
		}

		r.Route("/dishes", func(r chi.Router) {
			r.Post("/analyze", dishHandler.Analyze) // POST /api/v1/dishes/analyze
		})

		r.Route("/foods", func(r chi.Router) {
			r.Get("/{name}", foodHandler.GetFood)              // GET /api/v1/foods/{name}
			r.Get("/{name}/variants", foodHandler.GetVariants) // GET /api/v1/foods/{name}/variants
		})
	})

	return r
}
