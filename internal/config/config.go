// Package config loads process configuration from environment variables.
//
// Config is parsed once at start-up and then treated as read-only. The
// deployment Environment (Codespaces / Render flags) is different: it is
// re-read on every login request through LoadEnvironment, so the same process
// answers correctly when those variables change between preview and deploy.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration.
type Config struct {
	Port   int    `env:"PORT" envDefault:"5000"`
	DBPath string `env:"DB_PATH" envDefault:"data/todo.db"`

	// SessionSecret signs and encrypts the session cookie. When empty a
	// random secret is generated per process.
	SessionSecret string        `env:"APP_SECRET_KEY"`
	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE" envDefault:"24h"`
	SecureCookies bool          `env:"SECURE_COOKIES"`
	JWTSecret     string        `env:"JWT_SECRET"`
	JWTTTL        time.Duration `env:"JWT_TTL" envDefault:"1h"`
	OAuthTimeout  time.Duration `env:"OAUTH_TIMEOUT" envDefault:"10s"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	APIRateLimit  float64       `env:"API_RATE_LIMIT" envDefault:"10"`
	APIRateBurst  int           `env:"API_RATE_BURST" envDefault:"20"`

	// TrustProxyHeaders takes the client address from X-Forwarded-For /
	// X-Real-IP. Only set it behind a proxy that overwrites those headers;
	// otherwise any client can pick its own rate-limit key.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS"`

	// Site* fill the page header and the data-controller footer.
	SiteName              string `env:"SITE_NAME" envDefault:"TodoApp"`
	SiteControllerName    string `env:"SITE_CONTROLLER_NAME"`
	SiteControllerAddress string `env:"SITE_CONTROLLER_ADDRESS"`
	SiteControllerURL     string `env:"SITE_CONTROLLER_URL"`

	GitHub GitHubConfig `envPrefix:"GITHUB_"`
	Auth0  Auth0Config  `envPrefix:"AUTH0_"`
}

type GitHubConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	CallbackURL  string `env:"CALLBACK_URL"`
}

// Enabled reports whether enough is configured to register the provider.
func (c GitHubConfig) Enabled() bool { return c.ClientID != "" }

type Auth0Config struct {
	Domain       string `env:"DOMAIN"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	CallbackURL  string `env:"CALLBACK_URL"`
}

func (c Auth0Config) Enabled() bool { return c.Domain != "" }

// Load parses Config from the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.APIRateBurst < 1 {
		return Config{}, fmt.Errorf("config: API_RATE_BURST must be at least 1")
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to Info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
