package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Catalog sources.
const (
	CatalogSourceDatabase  = "database"
	CatalogSourceManifests = "manifests"
)

// Config holds all configuration for the assembly factory.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Renderers RenderersConfig `yaml:"renderers"`
	Delete    DeleteConfig    `yaml:"delete"`
	Session   SessionConfig   `yaml:"session"`
	Publish   PublishConfig   `yaml:"publish"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"factory"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"assembly_factory"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds Redis configuration. An empty host disables Redis and
// pending deletes are kept in process memory.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// CatalogConfig selects where part descriptors and props schemas come from.
// Schemas are always read from manifests when ManifestsPath is set.
type CatalogConfig struct {
	Source        string `yaml:"source" env:"CATALOG_SOURCE" env-default:"database"`
	ManifestsPath string `yaml:"manifests_path" env:"CATALOG_MANIFESTS_PATH" env-default:"./parts"`
}

// RenderersConfig holds bespoke renderer settings.
type RenderersConfig struct {
	// PluginsPath is a directory of <part_code>.wasm renderer plugins.
	PluginsPath string `yaml:"plugins_path" env:"RENDERER_PLUGINS_PATH" env-default:"./renderers"`
}

// DeleteConfig holds two-phase delete settings.
type DeleteConfig struct {
	ConfirmWindow time.Duration `yaml:"confirm_window" env:"DELETE_CONFIRM_WINDOW" env-default:"3s"`
}

// SessionConfig holds staging session cookie settings.
type SessionConfig struct {
	CookieName string `yaml:"cookie_name" env:"SESSION_COOKIE_NAME" env-default:"factory-session"`
	Secret     string `yaml:"-" env:"SESSION_SECRET"` // Secret - not in YAML
	// IdleTimeout drops staging areas that have not been touched for this long.
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"SESSION_IDLE_TIMEOUT" env-default:"12h"`
}

// PublishConfig holds deploy manifest publishing settings. An empty bucket
// disables publishing.
type PublishConfig struct {
	Bucket   string `yaml:"bucket" env:"PUBLISH_BUCKET" env-default:""`
	Prefix   string `yaml:"prefix" env:"PUBLISH_PREFIX" env-default:"assemblies/"`
	Region   string `yaml:"region" env:"AWS_REGION" env-default:"us-east-1"`
	Endpoint string `yaml:"endpoint" env:"PUBLISH_ENDPOINT" env-default:""` // S3-compatible stores (MinIO)
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// When config.yaml does not exist, configuration comes from the environment alone.
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile is Load with an explicit YAML path.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if err := c.validateTLS(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	switch c.Catalog.Source {
	case CatalogSourceDatabase, CatalogSourceManifests:
	default:
		return fmt.Errorf("invalid catalog source %q: must be %q or %q",
			c.Catalog.Source, CatalogSourceDatabase, CatalogSourceManifests)
	}
	if c.Catalog.Source == CatalogSourceManifests && c.Catalog.ManifestsPath == "" {
		return fmt.Errorf("catalog.manifests_path is required when catalog.source is %q", CatalogSourceManifests)
	}

	if c.Delete.ConfirmWindow <= 0 {
		return fmt.Errorf("delete.confirm_window must be positive, got %s", c.Delete.ConfirmWindow)
	}

	if c.Env != "local" && c.Session.Secret == "" {
		return fmt.Errorf("SESSION_SECRET is required outside local environments")
	}
	return nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// ConnectionString returns a PostgreSQL connection URL.
func (c *DatabaseConfig) ConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", ResolveHost(c.Host), c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

// Addr returns the Redis host:port address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", ResolveHost(c.Host), c.Port)
}
