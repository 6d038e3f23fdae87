package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	estateAuth "github.com/MrEthical07/estateAuth"
	estatemw "github.com/MrEthical07/estateAuth/middleware"
	"github.com/MrEthical07/estateAuth/metrics/export/prometheus"
	"github.com/MrEthical07/estateAuth/session"
)

// RouterOptions controls router construction. Engine is required.
type RouterOptions struct {
	Engine *estateAuth.Engine
	Logger *zap.Logger

	// AllowedOrigins feeds the CORS policy. Empty disables cross-origin access.
	AllowedOrigins []string
	// TrustProxy honours X-Forwarded-For and X-Real-IP for the client address.
	TrustProxy bool

	// MetricsHandler overrides the Prometheus exporter mounted at /metrics.
	MetricsHandler http.Handler
	ExtraRoutes    func(chi.Router)
}

// DefaultCORSOptions allows credentialed requests from origins. Cookies only cross origins
// when the browser is told credentials are allowed.
func DefaultCORSOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

// NewRouter assembles the HTTP API over opts.Engine.
func NewRouter(opts RouterOptions) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = opts.Engine.Logger()
	}
	h := &handlers{engine: opts.Engine, logger: logger.Named("http")}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if opts.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(estatemw.ClientIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(DefaultCORSOptions(opts.AllowedOrigins)))
	}
	r.Use(estatemw.LoadSession(opts.Engine))

	r.Get("/healthz", h.health)

	metrics := opts.MetricsHandler
	if metrics == nil {
		metrics = prometheus.NewExporter(opts.Engine).Handler()
	}
	r.Method(http.MethodGet, "/metrics", metrics)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/logout", h.logout)
		r.With(estatemw.RequireSession).Get("/me", h.me)
	})

	r.Route("/listings", func(r chi.Router) {
		r.Get("/", h.listListings)
		r.Get("/{id}", h.getListing)

		r.Group(func(r chi.Router) {
			r.Use(estatemw.RequireSession)
			r.Post("/", h.createListing)
			r.Patch("/{id}", h.updateListing)
			r.Delete("/{id}", h.deleteListing)
		})
	})

	r.Get("/browse", h.browseListings)

	r.Route("/agents", func(r chi.Router) {
		r.Get("/", h.listAgents)
		r.Get("/{id}", h.getAgent)
		r.With(estatemw.RequireSession).Put("/{id}", h.updateAgent)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(estatemw.RequireRole(session.RoleAdmin, session.RoleSuperAdmin))
		r.Post("/agents/{id}/invalidate", h.invalidateAgent)
		r.Post("/agents/invalidate", h.purgeAgents)
		r.Post("/listings/{id}/status", h.setListingStatus)
	})

	if opts.ExtraRoutes != nil {
		opts.ExtraRoutes(r)
	}

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
