package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"contacts-api/internal/auth"
	"contacts-api/internal/config"
	"contacts-api/internal/contact"
	"contacts-api/internal/db"
	"contacts-api/internal/mail"
	"contacts-api/internal/maintenance"
	"contacts-api/internal/media"
	"contacts-api/internal/observability"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Config  config.Config
	Close   func() error
}

// Build constructs the whole dependency graph from configuration. Every
// collaborator is an explicit value; nothing reads the environment after
// this returns.
func Build(options Options) (*Runtime, error) {
	cfg, err := config.Load(options.LoadDotEnv)
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger()

	if err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(cfg.DBMaxOpenConns)
	database.SetMaxIdleConns(cfg.DBMaxIdleConns)
	database.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	database.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	issuer, err := auth.NewTokenIssuer(
		cfg.JWTSecret,
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
		cfg.VerificationTokenTTL,
		cfg.ResetTokenTTL,
	)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	cache, err := auth.NewIdentityCache(cfg.CacheTTL)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	mailer, err := mail.NewSendGrid(cfg.SendGridAPIKey, cfg.EmailFrom, cfg.FrontendURL)
	if err != nil {
		cache.Close()
		_ = database.Close()
		return nil, fmt.Errorf("init mailer: %w", err)
	}

	uploader, err := media.NewCloudinary(cfg.CloudinaryURL)
	if err != nil {
		cache.Close()
		_ = database.Close()
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}

	authRepo := auth.NewRepository(database)
	authService := auth.NewService(authRepo, issuer, cache, mailer)
	authHandler := auth.NewHandler(authService)
	resolver := auth.NewResolver(issuer, authRepo, cache)

	if cfg.AdminEmail != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			cache.Close()
			_ = database.Close()
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		if err := authRepo.EnsureAdmin(context.Background(), cfg.AdminEmail, string(hash)); err != nil {
			cache.Close()
			_ = database.Close()
			return nil, fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	contactRepo := contact.NewRepository(database)
	contactHandler := contact.NewHandler(contactRepo)
	avatarHandler := media.NewAvatarHandler(uploader, authService)
	cleanupHandler := maintenance.NewCleanupHandler(
		authRepo, logger, cfg.CronSecret, cfg.RefreshRetention, cfg.CleanupBatchSize,
	)

	authenticated := func(h http.HandlerFunc) http.Handler {
		return auth.Middleware(resolver, h)
	}
	adminOnly := func(h http.HandlerFunc) http.Handler {
		return auth.Middleware(resolver, auth.RequireRole(auth.RoleAdmin, h))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", authHandler.Register)
	mux.HandleFunc("GET /auth/verify-email", authHandler.VerifyEmail)
	mux.HandleFunc("POST /auth/login", authHandler.Login)
	mux.HandleFunc("POST /auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /auth/logout", authHandler.Logout)
	mux.HandleFunc("POST /auth/request-password-reset", authHandler.RequestPasswordReset)
	mux.HandleFunc("POST /auth/reset-password", authHandler.ResetPassword)
	mux.Handle("POST /auth/change-role", adminOnly(authHandler.ChangeRole))
	mux.Handle("GET /me", authenticated(authHandler.Me))
	mux.Handle("POST /me/avatar", authenticated(avatarHandler.Upload))
	mux.Handle("POST /contacts", authenticated(contactHandler.Create))
	mux.Handle("GET /contacts/{id}", authenticated(contactHandler.Get))
	mux.Handle("PUT /contacts/{id}", authenticated(contactHandler.Update))
	mux.Handle("DELETE /contacts/{id}", authenticated(contactHandler.Delete))
	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("GET /health", healthHandler(database))

	handler := observability.RecoverMiddleware(logger, observability.RequestLoggingMiddleware(logger, mux))

	return &Runtime{
		Handler: handler,
		Config:  cfg,
		Close: func() error {
			observability.FlushSentry()
			cache.Close()
			return database.Close()
		},
	}, nil
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
