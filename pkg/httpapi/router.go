package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/rookmem/rook/pkg/facade"
	"github.com/rookmem/rook/pkg/logging"
	"github.com/rookmem/rook/pkg/metrics"
)

// Options configures NewRouter. APIKey empty disables auth regardless of
// RequireAuth (cmd/rookd is expected to have validated that combination via
// pkg/config.MemoryConfig.Validate before reaching here).
type Options struct {
	RequireAuth bool
	APIKey      string
	Version     string
	Metrics     *metrics.Collector
}

// NewRouter builds the full chi router for the §6 REST surface, grounded on
// 2lar-b2's interfaces/http/rest/router.go: global middleware first, CORS,
// then routes grouped by resource, each delegating to a Server method.
func NewRouter(f *facade.Facade, logger logging.Logger, opts Options) http.Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	srv := &Server{Facade: f, Logger: logger, Metrics: opts.Metrics, Version: opts.Version}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(loggingMiddleware(logger))
	if opts.Metrics != nil {
		r.Use(metricsMiddleware(opts.Metrics))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", srv.handleHealth)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}

	authKey := ""
	if opts.RequireAuth {
		authKey = opts.APIKey
	}

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(authKey, logger))

		r.Route("/memories", func(r chi.Router) {
			r.Post("/", srv.handleAdd)
			r.Get("/", srv.handleGetAll)
			r.Delete("/", srv.handleDeleteAll)
			r.Get("/{id}", srv.handleGet)
			r.Put("/{id}", srv.handleUpdate)
			r.Delete("/{id}", srv.handleDelete)
			r.Get("/{id}/history", srv.handleHistory)
		})

		r.Post("/search", srv.handleSearch)
		r.Post("/signals", srv.handleSignal)
		r.Post("/signals/apply", srv.handleSignalsApply)
		r.Post("/configure", srv.handleConfigure)
		r.Post("/reset", srv.handleReset)
	})

	return r
}
