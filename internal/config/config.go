package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Config is the full service configuration, read from GATEHOUSE_* environment
// variables after loading an optional .env file.
type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string

	BcryptCost int

	// TokenTTL is the remember-me token expiry window.
	TokenTTL time.Duration
	// SessionTTL is the server-side session lifetime.
	SessionTTL time.Duration

	CookieName     string
	CookieDomain   string
	CookieSecure   bool
	CookieHTTPOnly bool

	SessionCookieName string

	// ProtectedRoutes names the routes that require authentication.
	ProtectedRoutes []string

	// Bootstrap credentials for the first admin account, applied only when
	// the user table is empty.
	AdminUsername string
	AdminPassword string
}

// Load reads configuration from the environment. A missing .env file is not
// an error.
func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		Port:              envOr("GATEHOUSE_PORT", "8080"),
		DBPath:            envOr("GATEHOUSE_DB_PATH", "gatehouse.db"),
		LogLevel:          envOr("GATEHOUSE_LOG_LEVEL", "info"),
		LogFormat:         envOr("GATEHOUSE_LOG_FORMAT", "text"),
		BcryptCost:        bcrypt.DefaultCost,
		TokenTTL:          30 * 24 * time.Hour,
		SessionTTL:        12 * time.Hour,
		CookieName:        envOr("GATEHOUSE_COOKIE_NAME", "gatehouse_remember"),
		CookieDomain:      os.Getenv("GATEHOUSE_COOKIE_DOMAIN"),
		CookieSecure:      envBool("GATEHOUSE_COOKIE_SECURE", true),
		CookieHTTPOnly:    envBool("GATEHOUSE_COOKIE_HTTPONLY", true),
		SessionCookieName: envOr("GATEHOUSE_SESSION_COOKIE_NAME", "gatehouse_session"),
		ProtectedRoutes:   splitList(envOr("GATEHOUSE_PROTECTED_ROUTES", "me,tokens,logout")),
		AdminUsername:     os.Getenv("GATEHOUSE_ADMIN_USERNAME"),
		AdminPassword:     os.Getenv("GATEHOUSE_ADMIN_PASSWORD"),
	}

	if v := os.Getenv("GATEHOUSE_BCRYPT_COST"); v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse GATEHOUSE_BCRYPT_COST: %w", err)
		}
		cfg.BcryptCost = cost
	}
	if v := os.Getenv("GATEHOUSE_TOKEN_TTL_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse GATEHOUSE_TOKEN_TTL_SECONDS: %w", err)
		}
		cfg.TokenTTL = time.Duration(secs) * time.Second
	}
	if v := os.Getenv("GATEHOUSE_SESSION_TTL_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse GATEHOUSE_SESSION_TTL_SECONDS: %w", err)
		}
		cfg.SessionTTL = time.Duration(secs) * time.Second
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
