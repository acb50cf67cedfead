package config

import (
	"fmt"
	"net/url"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the audit engine.
// Configuration can come from YAML file (config.yaml) or environment
// variables. Environment variables always override YAML values.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Document blob storage configuration
	Storage StorageConfig `yaml:"storage"`

	// AI assistant configuration (Ollama or any OpenAI-compatible endpoint)
	Assistant AssistantConfig `yaml:"assistant"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"auditsource"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"auditsource"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// StorageConfig selects and configures the document blob backend.
type StorageConfig struct {
	// Backend is one of "local", "s3", or "memory".
	Backend string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"local"`
	// LocalDir is the root directory for the local backend.
	LocalDir string `yaml:"local_dir" env:"STORAGE_LOCAL_DIR" env-default:"./data/documents"`

	S3 S3Config `yaml:"s3"`
}

// S3Config holds S3 backend settings. Credentials come from the standard
// AWS environment/credential chain; static keys may be set for
// S3-compatible stores (MinIO).
type S3Config struct {
	Bucket    string `yaml:"bucket" env:"STORAGE_S3_BUCKET" env-default:""`
	Region    string `yaml:"region" env:"STORAGE_S3_REGION" env-default:"us-east-1"`
	Endpoint  string `yaml:"endpoint" env:"STORAGE_S3_ENDPOINT" env-default:""`
	AccessKey string `yaml:"-" env:"STORAGE_S3_ACCESS_KEY"` // Secret - not in YAML
	SecretKey string `yaml:"-" env:"STORAGE_S3_SECRET_KEY"` // Secret - not in YAML
}

// AssistantConfig holds AI assistant settings.
type AssistantConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ASSISTANT_ENABLED" env-default:"false"`
	Endpoint string `yaml:"endpoint" env:"ASSISTANT_ENDPOINT" env-default:"http://localhost:11434/v1"`
	Model    string `yaml:"model" env:"ASSISTANT_MODEL" env-default:"llama3"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time and set on
// the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	// Inside a container, localhost database targets mean the host machine.
	cfg.Database.Host = ResolveHostForDocker(cfg.Database.Host)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "local", "memory":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage backend s3 requires a bucket")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}
	return nil
}
