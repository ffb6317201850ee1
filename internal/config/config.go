package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAccessTTL        = 15 * time.Minute
	defaultRefreshTTL       = 7 * 24 * time.Hour
	defaultCacheTTL         = 300 * time.Second
	verificationTokenTTL    = 24 * time.Hour
	passwordResetTokenTTL   = time.Hour
	defaultPort             = "8080"
	defaultRefreshRetention = 14 * 24 * time.Hour
)

// Config is the full runtime configuration, resolved once at startup.
// Request handling never reads the environment.
type Config struct {
	DatabaseURL string
	JWTSecret   string

	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	VerificationTokenTTL time.Duration
	ResetTokenTTL        time.Duration
	CacheTTL             time.Duration

	SendGridAPIKey string
	EmailFrom      string
	FrontendURL    string
	CloudinaryURL  string

	SentryDSN string
	AppEnv    string
	Port      string

	CronSecret       string
	RefreshRetention time.Duration
	CleanupBatchSize int

	AdminEmail    string
	AdminPassword string

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
}

// Load reads the environment (plus .env when loadDotEnv is set) into a Config
// and validates everything handlers will later depend on.
func Load(loadDotEnv bool) (Config, error) {
	if loadDotEnv {
		_ = godotenv.Load()
	}

	cfg := Config{
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		JWTSecret:   strings.TrimSpace(os.Getenv("JWT_SECRET")),

		AccessTokenTTL:       minutesOrDefault("ACCESS_TOKEN_TTL_MINUTES", defaultAccessTTL),
		RefreshTokenTTL:      hoursOrDefault("REFRESH_TOKEN_TTL_HOURS", defaultRefreshTTL),
		VerificationTokenTTL: verificationTokenTTL,
		ResetTokenTTL:        passwordResetTokenTTL,
		CacheTTL:             secondsOrDefault("IDENTITY_CACHE_TTL_SECONDS", defaultCacheTTL),

		SendGridAPIKey: strings.TrimSpace(os.Getenv("SENDGRID_API_KEY")),
		EmailFrom:      strings.TrimSpace(os.Getenv("EMAIL_FROM")),
		FrontendURL:    strings.TrimRight(strings.TrimSpace(os.Getenv("FRONTEND_URL")), "/"),
		CloudinaryURL:  strings.TrimSpace(os.Getenv("CLOUDINARY_URL")),

		SentryDSN: strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		AppEnv:    stringOrDefault("APP_ENV", "development"),
		Port:      stringOrDefault("PORT", defaultPort),

		CronSecret:       strings.TrimSpace(os.Getenv("CRON_SECRET")),
		RefreshRetention: daysOrDefault("REFRESH_TOKEN_RETENTION_DAYS", defaultRefreshRetention),
		CleanupBatchSize: intOrDefault("CLEANUP_BATCH_SIZE", 500),

		AdminEmail:    strings.TrimSpace(strings.ToLower(os.Getenv("ADMIN_EMAIL"))),
		AdminPassword: strings.TrimSpace(os.Getenv("ADMIN_PASSWORD")),

		DBMaxOpenConns:    intOrDefault("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:    intOrDefault("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: minutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		DBConnMaxIdleTime: minutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10*time.Minute),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("missing required env: DATABASE_URL")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("missing required env: JWT_SECRET")
	}
	if c.CloudinaryURL == "" {
		return fmt.Errorf("missing required env: CLOUDINARY_URL")
	}
	if c.SendGridAPIKey == "" {
		return fmt.Errorf("missing required env: SENDGRID_API_KEY")
	}
	if c.EmailFrom == "" {
		return fmt.Errorf("missing required env: EMAIL_FROM")
	}
	if c.FrontendURL == "" {
		return fmt.Errorf("missing required env: FRONTEND_URL")
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD are required together")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.CacheTTL <= 0 {
		return fmt.Errorf("token and cache lifetimes must be positive")
	}
	return nil
}

func stringOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func secondsOrDefault(name string, fallback time.Duration) time.Duration {
	return scaledOrDefault(name, fallback, time.Second)
}

func minutesOrDefault(name string, fallback time.Duration) time.Duration {
	return scaledOrDefault(name, fallback, time.Minute)
}

func hoursOrDefault(name string, fallback time.Duration) time.Duration {
	return scaledOrDefault(name, fallback, time.Hour)
}

func daysOrDefault(name string, fallback time.Duration) time.Duration {
	return scaledOrDefault(name, fallback, 24*time.Hour)
}

func scaledOrDefault(name string, fallback time.Duration, unit time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return time.Duration(parsed) * unit
}
