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
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StockModeRacy   = "racy"
	StockModeAtomic = "atomic"

	BackendSQL       = "sql"
	BackendMongo     = "mongo"
	BackendFirestore = "firestore"

	placeholderSecret = "CHANGE_ME_PRODUCTION_JWT_SECRET"
)

type Config struct {
	ListenAddr string
	AppEnv     string

	StoreBackend      string
	DBDriver          string
	DBDSN             string
	DBMigrationsDir   string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	MongoURI      string
	MongoDatabase string

	FirestoreProjectID       string
	GoogleCredentialsFile    string
	FirebaseVerifyIDTokens   bool
	AllowUnverifiedLogin     bool
	BootstrapAdminEmail      string
	OrderStockMode           string
	OrderRateLimitPerMinute  int
	LoginRateLimitPerMinute  int
	SessionCookieName        string
	JWTSecret                string
	JWTTTLHours              int
	CookieSameSite           string
	TrustProxy               bool
	CORSAllowedOrigins       []string
	HTTPReadTimeoutSec       int
	HTTPReadHeaderTimeoutSec int
	HTTPWriteTimeoutSec      int
	HTTPIdleTimeoutSec       int
	HTTPShutdownTimeoutSec   int

	OrderNotifySender string
	OrderNotifyFrom   string
	SMTPHost          string
	SMTPPort          int
	SendGridAPIKey    string
}

// Load reads configuration from the environment. A .env file in the working
// directory (or the file named by ENV_FILE) is loaded first when present;
// variables already set in the process environment win.
func Load() (Config, error) {
	envFile := env("ENV_FILE", ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := Config{
		ListenAddr:               env("LISTEN_ADDR", ":5000"),
		AppEnv:                   strings.ToLower(env("APP_ENV", EnvDevelopment)),
		StoreBackend:             strings.ToLower(env("STORE_BACKEND", BackendSQL)),
		DBDriver:                 strings.ToLower(env("DB_DRIVER", "sqlite")),
		DBDSN:                    env("DB_DSN", "./data/garments.db"),
		DBMigrationsDir:          env("DB_MIGRATIONS_DIR", "migrations"),
		DBMaxOpenConns:           envInt("DB_MAX_OPEN_CONNS", 4),
		DBMaxIdleConns:           envInt("DB_MAX_IDLE_CONNS", 2),
		DBConnMaxLifetime:        time.Duration(envInt("DB_CONN_MAX_LIFETIME_MIN", 30)) * time.Minute,
		MongoURI:                 env("MONGO_URI", "mongodb://127.0.0.1:27017"),
		MongoDatabase:            env("MONGO_DATABASE", "garments"),
		FirestoreProjectID:       env("FIRESTORE_PROJECT_ID", ""),
		GoogleCredentialsFile:    env("GOOGLE_APPLICATION_CREDENTIALS", ""),
		FirebaseVerifyIDTokens:   envBool("FIREBASE_VERIFY_ID_TOKENS", false),
		AllowUnverifiedLogin:     envBool("ALLOW_UNVERIFIED_LOGIN", false),
		BootstrapAdminEmail:      strings.ToLower(strings.TrimSpace(env("BOOTSTRAP_ADMIN_EMAIL", ""))),
		OrderStockMode:           strings.ToLower(env("ORDER_STOCK_MODE", StockModeAtomic)),
		OrderRateLimitPerMinute:  envInt("ORDER_RATE_LIMIT_PER_MINUTE", 30),
		LoginRateLimitPerMinute:  envInt("LOGIN_RATE_LIMIT_PER_MINUTE", 20),
		SessionCookieName:        env("SESSION_COOKIE_NAME", "token"),
		JWTSecret:                env("JWT_SECRET", placeholderSecret),
		JWTTTLHours:              envInt("JWT_TTL_HOURS", 7*24),
		CookieSameSite:           strings.ToLower(env("COOKIE_SAMESITE", "")),
		TrustProxy:               envBool("TRUST_PROXY", false),
		CORSAllowedOrigins:       envCSV("CORS_ALLOWED_ORIGINS"),
		HTTPReadTimeoutSec:       envInt("HTTP_READ_TIMEOUT_SEC", 10),
		HTTPReadHeaderTimeoutSec: envInt("HTTP_READ_HEADER_TIMEOUT_SEC", 5),
		HTTPWriteTimeoutSec:      envInt("HTTP_WRITE_TIMEOUT_SEC", 30),
		HTTPIdleTimeoutSec:       envInt("HTTP_IDLE_TIMEOUT_SEC", 60),
		HTTPShutdownTimeoutSec:   envInt("HTTP_SHUTDOWN_TIMEOUT_SEC", 10),
		OrderNotifySender:        strings.ToLower(env("ORDER_NOTIFY_SENDER", "log")),
		OrderNotifyFrom:          env("ORDER_NOTIFY_FROM", "orders@example.com"),
		SMTPHost:                 env("SMTP_HOST", "127.0.0.1"),
		SMTPPort:                 envInt("SMTP_PORT", 587),
		SendGridAPIKey:           env("SENDGRID_API_KEY", ""),
	}

	switch cfg.AppEnv {
	case EnvDevelopment, EnvProduction:
	default:
		return Config{}, fmt.Errorf("APP_ENV must be one of: development, production")
	}
	switch cfg.OrderStockMode {
	case StockModeRacy, StockModeAtomic:
	default:
		return Config{}, fmt.Errorf("ORDER_STOCK_MODE must be one of: racy, atomic")
	}
	switch cfg.StoreBackend {
	case BackendSQL:
		switch cfg.DBDriver {
		case "sqlite", "pgx", "mysql":
		default:
			return Config{}, fmt.Errorf("DB_DRIVER must be one of: sqlite, pgx, mysql")
		}
		if cfg.DBMaxOpenConns <= 0 || cfg.DBMaxIdleConns < 0 {
			return Config{}, fmt.Errorf("invalid DB pool config")
		}
	case BackendMongo:
		if strings.TrimSpace(cfg.MongoURI) == "" || strings.TrimSpace(cfg.MongoDatabase) == "" {
			return Config{}, fmt.Errorf("MONGO_URI and MONGO_DATABASE are required when STORE_BACKEND=mongo")
		}
	case BackendFirestore:
		if strings.TrimSpace(cfg.FirestoreProjectID) == "" {
			return Config{}, fmt.Errorf("FIRESTORE_PROJECT_ID is required when STORE_BACKEND=firestore")
		}
	default:
		return Config{}, fmt.Errorf("STORE_BACKEND must be one of: sql, mongo, firestore")
	}
	switch cfg.CookieSameSite {
	case "", "lax", "strict", "none":
	default:
		return Config{}, fmt.Errorf("COOKIE_SAMESITE must be one of: lax, strict, none")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" || cfg.JWTSecret == placeholderSecret || len(cfg.JWTSecret) < 32 {
		return Config{}, fmt.Errorf("JWT_SECRET must be set to a strong non-default value (>=32 chars)")
	}
	if cfg.JWTTTLHours <= 0 {
		return Config{}, fmt.Errorf("JWT_TTL_HOURS must be positive")
	}
	if cfg.OrderRateLimitPerMinute <= 0 || cfg.LoginRateLimitPerMinute <= 0 {
		return Config{}, fmt.Errorf("rate limits must be positive")
	}
	switch cfg.OrderNotifySender {
	case "log", "smtp", "sendgrid", "none":
	default:
		return Config{}, fmt.Errorf("ORDER_NOTIFY_SENDER must be one of: log, smtp, sendgrid, none")
	}
	if cfg.OrderNotifySender == "sendgrid" && strings.TrimSpace(cfg.SendGridAPIKey) == "" {
		return Config{}, fmt.Errorf("SENDGRID_API_KEY is required when ORDER_NOTIFY_SENDER=sendgrid")
	}
	if cfg.FirebaseVerifyIDTokens && strings.TrimSpace(cfg.FirestoreProjectID) == "" {
		return Config{}, fmt.Errorf("FIRESTORE_PROJECT_ID is required when FIREBASE_VERIFY_ID_TOKENS=true")
	}
	// Without verification a login only asserts an email, including the admin's.
	if cfg.Production() && !cfg.FirebaseVerifyIDTokens && !cfg.AllowUnverifiedLogin {
		return Config{}, fmt.Errorf("FIREBASE_VERIFY_ID_TOKENS=true is required in production (or set ALLOW_UNVERIFIED_LOGIN=true)")
	}
	return cfg, nil
}

func (c Config) Production() bool {
	return c.AppEnv == EnvProduction
}

func (c Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLHours) * time.Hour
}

// MigrationFile returns the init migration for the configured SQL dialect.
func (c Config) MigrationFile() string {
	return c.DBMigrationsDir + "/" + c.DBDriver + "/001_init.sql"
}

func env(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return d
	}
	return b
}

func envCSV(k string) []string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
