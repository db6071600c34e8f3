package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env           string
	Port          int
	DBURL         string
	DBMaxConns    int
	StorageDriver string

	JWTSecret           string
	JWTAccessTTLMinutes int
	JWTRefreshTTLDays   int
	BcryptCost          int

	AdminEmail    string
	AdminPassword string
	AdminName     string
	AdminRole     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OTELEnabled     bool
	OTELEndpoint    string
	OTELSampleRatio float64

	CORSAllowedOrigins []string

	OrderTimeout      time.Duration
	CatalogCacheTTL   time.Duration
	SeedCatalog       bool
	WorkerPollMillis  int
	WorkerConcurrency int
	WorkerHealthPort  int

	PaymentBaseURL     string
	PaymentSecretKey   string
	PaymentCallbackURL string
	PaymentReturnURL   string
	PaymentCurrency    string
}

func Load() Config {
	// a missing .env is normal outside local dev
	_ = godotenv.Load()

	return Config{
		Env:           getEnv("APP_ENV", "dev"),
		Port:          getEnvInt("PORT", 3001),
		DBURL:         buildDBURL(),
		DBMaxConns:    getEnvInt("DB_MAX_CONNS", 10),
		StorageDriver: getEnv("STORAGE_DRIVER", "postgres"),

		JWTSecret:           getEnv("JWT_SECRET", ""),
		JWTAccessTTLMinutes: getEnvInt("JWT_ACCESS_TTL_MINUTES", 60),
		JWTRefreshTTLDays:   getEnvInt("JWT_REFRESH_TTL_DAYS", 7),
		BcryptCost:          getEnvInt("BCRYPT_COST", 10),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminName:     getEnv("ADMIN_NAME", "Admin"),
		AdminRole:     getEnv("ADMIN_ROLE", "admin"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		OTELEnabled:     getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELSampleRatio: getEnvFloat("OTEL_SAMPLE_RATIO", 1),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),

		OrderTimeout:      time.Duration(getEnvInt("ORDER_TIMEOUT_MS", 5000)) * time.Millisecond,
		CatalogCacheTTL:   time.Duration(getEnvInt("CATALOG_CACHE_TTL_SECONDS", 30)) * time.Second,
		SeedCatalog:       getEnvBool("SEED_CATALOG", false),
		WorkerPollMillis:  getEnvInt("WORKER_POLL_MS", 250),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),
		WorkerHealthPort:  getEnvInt("WORKER_HEALTH_PORT", 8081),

		PaymentBaseURL:     getEnv("PAYMENT_BASE_URL", "https://api.chapa.co/v1"),
		PaymentSecretKey:   getEnv("PAYMENT_SECRET_KEY", ""),
		PaymentCallbackURL: getEnv("PAYMENT_CALLBACK_URL", ""),
		PaymentReturnURL:   getEnv("PAYMENT_RETURN_URL", ""),
		PaymentCurrency:    getEnv("PAYMENT_CURRENCY", "ETB"),
	}
}

// Validate rejects configurations that must never reach production.
func (c Config) Validate() error {
	if c.StorageDriver != "postgres" && c.StorageDriver != "memory" {
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	if c.JWTSecret == "" && c.Env != "dev" && c.Env != "test" {
		return fmt.Errorf("JWT_SECRET is required when APP_ENV=%s", c.Env)
	}

	return nil
}

// SigningSecret falls back to a fixed secret in dev/test; Validate blocks that elsewhere.
func (c Config) SigningSecret() string {
	if c.JWTSecret != "" {
		return c.JWTSecret
	}
	return "dev-only-insecure-secret"
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}

func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.JWTRefreshTTLDays) * 24 * time.Hour
}

func buildDBURL() string {
	if url := getEnv("DATABASE_URL", ""); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "storefront")
	pass := getEnv("DB_PASSWORD", "storefront")
	name := getEnv("DB_NAME", "storefront")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %s=%q is not an int, using %d\n", key, v, fallback)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %s=%q is not a number, using %g\n", key, v, fallback)
			return fallback
		}
		return f
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return b
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
