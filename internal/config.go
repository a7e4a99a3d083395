package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Public base URL, used to build OAuth2 redirect URIs
	BaseURL string

	// Session and password settings
	SessionDuration time.Duration
	BcryptCost      int

	// CSRF protection is off unless explicitly enabled
	CSRFEnabled bool

	// Form login throttling (failures per client IP per window)
	LoginMaxAttempts int
	LoginWindow      time.Duration

	// Reverse proxies (IPs or CIDRs) whose X-Forwarded-For and X-Real-IP
	// headers are believed. Empty means the peer address is the client.
	TrustedProxies []string

	// Maintenance worker
	WorkerEnabled          bool
	SessionCleanupInterval time.Duration

	// OAuth2 client registrations. Providers without a client ID are not offered.
	GoogleClientID     string
	GoogleClientSecret string
	GitHubClientID     string
	GitHubClientSecret string
	NaverClientID      string
	NaverClientSecret  string
	KakaoClientID      string
	KakaoClientSecret  string

	// Optional YAML file with additional or overriding registrations
	OAuth2ClientsFile string

	// Metrics listener. /metrics and /health are served here, not on PORT.
	// If both credentials are empty, /metrics is unprotected (not recommended)
	MetricsAddr     string
	MetricsUsername string
	MetricsPassword string
}

// IsSecure reports whether cookies should carry the Secure attribute.
func (c *Config) IsSecure() bool {
	return c.Env != "development"
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		// Base URL defaults to localhost for development
		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		SessionDuration: getEnvDuration("SESSION_DURATION", 24*time.Hour),
		BcryptCost:      getEnvInt("BCRYPT_COST", 12),

		CSRFEnabled: getEnvBool("CSRF_ENABLED", false),

		LoginMaxAttempts: getEnvInt("LOGIN_MAX_ATTEMPTS", 5),
		LoginWindow:      getEnvDuration("LOGIN_WINDOW", 15*time.Minute),
		TrustedProxies:   getEnvList("TRUSTED_PROXIES"),

		WorkerEnabled:          getEnvBool("WORKER_ENABLED", true),
		SessionCleanupInterval: getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Hour),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GitHubClientID:     getEnv("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: getEnv("GITHUB_CLIENT_SECRET", ""),
		NaverClientID:      getEnv("NAVER_CLIENT_ID", ""),
		NaverClientSecret:  getEnv("NAVER_CLIENT_SECRET", ""),
		KakaoClientID:      getEnv("KAKAO_CLIENT_ID", ""),
		KakaoClientSecret:  getEnv("KAKAO_CLIENT_SECRET", ""),

		OAuth2ClientsFile: getEnv("OAUTH2_CLIENTS_FILE", ""),

		MetricsAddr:     getEnv("METRICS_ADDR", ":9090"),
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got: %d", cfg.BcryptCost)
	}

	if cfg.LoginMaxAttempts < 1 {
		return nil, fmt.Errorf("LOGIN_MAX_ATTEMPTS must be positive, got: %d", cfg.LoginMaxAttempts)
	}

	if (cfg.MetricsUsername == "") != (cfg.MetricsPassword == "") {
		return nil, fmt.Errorf("METRICS_USERNAME and METRICS_PASSWORD must be set together")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated value, dropping empty items.
func getEnvList(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
