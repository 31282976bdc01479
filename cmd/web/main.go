// Package main is the entrypoint for the booklog front-end server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/booklog/booklog/internal/bff"
	"github.com/booklog/booklog/internal/cache"
	"github.com/booklog/booklog/internal/config"
	"github.com/booklog/booklog/internal/handler"
	"github.com/booklog/booklog/internal/identity"
	"github.com/booklog/booklog/internal/metrics"
	"github.com/booklog/booklog/internal/middleware"
	"github.com/booklog/booklog/internal/oauth"
	"github.com/booklog/booklog/internal/repository"
	"github.com/booklog/booklog/internal/server"
	"github.com/booklog/booklog/internal/session"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadWeb()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.LogLevel, cfg.LogFormat)

	// The front end owns the account store
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	sessions := session.NewManager(cacheClient, cfg.SessionCookie, cfg.SessionTTL, cfg.SecureCookies)
	resolver := identity.NewResolver(repo, identity.ParseLinkPolicy(cfg.LinkPolicy), logger)

	var googleClient *oauth.Client
	if provider := oauth.Google(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.OAuthCallbackURL); provider.Configured() {
		googleClient = oauth.NewClient(provider, cacheClient, cfg.APITimeout)
		logger.Info("federated login enabled", "provider", provider.Name)
	} else {
		logger.Info("federated login disabled")
	}

	apiClient := bff.NewClient(cfg.APIURL, []byte(cfg.ServiceTokenSecret), cfg.APITimeout)
	recorder := metrics.NewInMemory()

	bffHandler := bff.NewHandler(
		apiClient,
		sessions,
		resolver,
		googleClient,
		cacheClient,
		bff.RateLimitSettings{
			Enabled:       cfg.LoginRateLimitEnabled,
			RatePerMinute: cfg.LoginRatePerMinute,
			Burst:         cfg.LoginRateBurst,
		},
		recorder,
		logger,
	)

	h := handler.New()
	healthHandler := handler.NewHealthHandler(repo, cacheClient)

	r := setupRouter(h, healthHandler, bffHandler, sessions, logger)

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	logger.Info("starting front-end server",
		"port", cfg.AppPort,
		"api_url", cfg.APIURL,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(logLevel, logFormat string) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(logLevel),
	}

	if logFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h *handler.Handler,
	healthHandler *handler.HealthHandler,
	bffHandler *bff.Handler,
	sessions *session.Manager,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Session(sessions, logger))

	// Health endpoints
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)

	// Page views
	r.Get("/", bffHandler.Home)
	r.Get("/logs", bffHandler.Logs)
	r.Get("/new", bffHandler.NewEntry)
	r.Get("/edit/{id}", bffHandler.Edit)
	r.Get("/login", bffHandler.LoginPage)
	r.Get("/register", bffHandler.RegisterPage)

	// Account flows
	r.Post("/login", bffHandler.Login)
	r.Post("/register", bffHandler.Register)
	r.Get("/logout", bffHandler.Logout)
	r.Get("/auth/google", bffHandler.GoogleStart)
	r.Get("/auth/google/callback", bffHandler.GoogleCallback)

	// Entry actions
	r.Post("/api/sort", bffHandler.Sort)
	r.Post("/api/search", bffHandler.Search)
	r.Post("/api/logs", bffHandler.Create)
	r.Post("/api/posts/{id}", bffHandler.Update)
	r.Get("/api/posts/delete/{id}", bffHandler.Delete)

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
