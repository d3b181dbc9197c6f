package app

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// An empty DSN runs the app without a database: access rules fall
	// back to the built-in defaults and cannot be edited.
	PGDSN string `envconfig:"PG_DSN" default:""`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"720h"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	AccessCacheTTL time.Duration `envconfig:"ACCESS_CACHE_TTL" default:"60s"`

	OIDCProviderName string `envconfig:"OIDC_PROVIDER_NAME" default:"auth0"`
	OIDCIssuerURL    string `envconfig:"OIDC_ISSUER_URL"`
	OIDCClientID     string `envconfig:"OIDC_CLIENT_ID"`
	OIDCClientSecret string `envconfig:"OIDC_CLIENT_SECRET"`
	OIDCRedirectURL  string `envconfig:"OIDC_REDIRECT_URL" default:"http://localhost:8080/auth/callback"`

	IdPDomain          string `envconfig:"IDP_DOMAIN"`
	IdPM2MClientID     string `envconfig:"IDP_M2M_CLIENT_ID"`
	IdPM2MClientSecret string `envconfig:"IDP_M2M_CLIENT_SECRET"`
	IdPConnection      string `envconfig:"IDP_DB_CONNECTION"`

	DevLoginEmail        string `envconfig:"DEV_LOGIN_EMAIL"`
	DevLoginPasswordHash string `envconfig:"DEV_LOGIN_PASSWORD_HASH"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret must be provided")
	}
	if cfg.CSRFSecret == "" {
		return nil, errors.New("csrf secret must be provided")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// Persistent reports whether a database is configured.
func (c *Config) Persistent() bool {
	return c != nil && c.PGDSN != ""
}
