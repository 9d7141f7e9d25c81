package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/FACorreiaa/go-auth-service/internal/api/auth"
)

// Config contains dependencies needed for the router setup
type Config struct {
	AuthHandler    *auth.HandlerImpl
	Tokens         auth.AccessTokenVerifier
	Store          auth.CredentialStore
	Logger         *slog.Logger
	AllowedOrigins []string
	// PublicRateLimit caps requests per minute per client IP on the
	// unauthenticated auth routes. Zero disables it.
	PublicRateLimit int
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (request id, logger, recoverer) is applied in main.go
// before this router is mounted.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})
	r.Get("/healthz", cfg.AuthHandler.Health)
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	var public []auth.Middleware
	if cfg.PublicRateLimit > 0 {
		public = append(public, httprate.LimitByIP(cfg.PublicRateLimit, time.Minute))
	}

	r.Mount("/auth", cfg.AuthHandler.Routes(
		auth.Authenticate(cfg.Logger, cfg.Tokens, cfg.Store),
		auth.RequireAdmin(cfg.Logger),
		public...,
	))

	return r
}
