// Package config provides application configuration with multi-source
// priority.
//
// Sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.labelforge/config.yaml)
//  3. Default values
//
// Sensitive data (API key, database password) is never logged; secrets
// are masked in MarshalJSON and String. Validation uses sentinel errors
// so callers can branch with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/vintera/labelforge/internal/fault"
	"github.com/vintera/labelforge/internal/llm"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates the model API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelSettings indicates a per-step model entry is invalid.
	ErrInvalidModelSettings = errors.New("invalid model settings")

	// ErrInvalidRetry indicates the retry policy is out of range.
	ErrInvalidRetry = errors.New("invalid retry policy")

	// ErrInvalidPipeline indicates the pipeline bounds are out of range.
	ErrInvalidPipeline = errors.New("invalid pipeline bounds")

	// ErrInvalidStorage indicates the blob storage settings are invalid.
	ErrInvalidStorage = errors.New("invalid storage settings")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")
)

// RetryConfig mirrors fault.RetryConfig in file-friendly units.
type RetryConfig struct {
	MaxAttempts     int     `mapstructure:"max_attempts" json:"max_attempts"`
	BaseDelayMS     int     `mapstructure:"base_delay_ms" json:"base_delay_ms"`
	MaxDelayMS      int     `mapstructure:"max_delay_ms" json:"max_delay_ms"`
	ExponentialBase float64 `mapstructure:"exponential_base" json:"exponential_base"`
	Jitter          bool    `mapstructure:"jitter" json:"jitter"`
}

// Fault converts to the runtime retry policy.
func (r RetryConfig) Fault() fault.RetryConfig {
	return fault.RetryConfig{
		MaxAttempts:     r.MaxAttempts,
		BaseDelay:       time.Duration(r.BaseDelayMS) * time.Millisecond,
		MaxDelay:        time.Duration(r.MaxDelayMS) * time.Millisecond,
		ExponentialBase: r.ExponentialBase,
		Jitter:          r.Jitter,
	}
}

// PipelineConfig bounds a generation run.
type PipelineConfig struct {
	ImageWorkers  int     `mapstructure:"image_workers" json:"image_workers"`
	AspectRatio   string  `mapstructure:"aspect_ratio" json:"aspect_ratio"`
	MaxIterations int     `mapstructure:"max_iterations" json:"max_iterations"`
	MaxEdits      int     `mapstructure:"max_edits" json:"max_edits"`
	MaxDelta      float64 `mapstructure:"max_delta" json:"max_delta"`
}

// ObservabilityConfig configures OTLP trace export.
type ObservabilityConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON; when
// adding a secret field, update MarshalJSON.
type Config struct {
	// Model access
	APIKey       string       `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
	RateLimitRPS float64      `mapstructure:"rate_limit_rps" json:"rate_limit_rps"`
	RateBurst    int          `mapstructure:"rate_burst" json:"rate_burst"`
	Mock         bool         `mapstructure:"mock" json:"mock"` // mock adapters for offline runs
	Steps        llm.Settings `mapstructure:"steps" json:"steps"`

	Retry    RetryConfig    `mapstructure:"retry" json:"retry"`
	Pipeline PipelineConfig `mapstructure:"pipeline" json:"pipeline"`

	// Blob storage
	BlobDir     string `mapstructure:"blob_dir" json:"blob_dir"`
	BlobBaseURL string `mapstructure:"blob_base_url" json:"blob_base_url"`

	// RendererURL points at the external rasterizer service; empty
	// selects the built-in deterministic mock.
	RendererURL string `mapstructure:"renderer_url" json:"renderer_url"`

	// PostgreSQL
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	Observability ObservabilityConfig `mapstructure:"observability" json:"observability"`
}

// Load reads configuration with priority env > file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".labelforge")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL wins over individual postgres_* settings.
	if err := cfg.parseDatabaseURL(os.Getenv("DATABASE_URL")); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rate_limit_rps", 2.0)
	v.SetDefault("rate_burst", 4)
	v.SetDefault("mock", false)

	for step, st := range llm.DefaultSettings() {
		v.SetDefault("steps."+step+".provider", st.Provider)
		v.SetDefault("steps."+step+".model", st.Model)
		v.SetDefault("steps."+step+".temperature", st.Temperature)
		v.SetDefault("steps."+step+".vision", st.Vision)
	}

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay_ms", 500)
	v.SetDefault("retry.max_delay_ms", 10000)
	v.SetDefault("retry.exponential_base", 2.0)
	v.SetDefault("retry.jitter", true)

	v.SetDefault("pipeline.image_workers", 3)
	v.SetDefault("pipeline.aspect_ratio", "3:4")
	v.SetDefault("pipeline.max_iterations", 2)
	v.SetDefault("pipeline.max_edits", 10)
	v.SetDefault("pipeline.max_delta", 0.2)

	v.SetDefault("blob_dir", "blobs")
	v.SetDefault("blob_base_url", "http://localhost:8080/blobs")
	v.SetDefault("renderer_url", "")

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "labelforge")
	v.SetDefault("postgres_password", "labelforge_dev_password")
	v.SetDefault("postgres_db_name", "labelforge")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("observability.enabled", false)
	v.SetDefault("observability.endpoint", "localhost:4318")
	v.SetDefault("observability.service_name", "labelforge")
	v.SetDefault("observability.environment", "dev")
}

// bindEnvVariables binds environment overrides explicitly. Hardcoded
// keys cannot fail to bind; a bind error is a bug.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("api_key", "GEMINI_API_KEY")
	mustBind("mock", "LABELFORGE_MOCK")
	mustBind("blob_dir", "LABELFORGE_BLOB_DIR")
	mustBind("blob_base_url", "LABELFORGE_BLOB_BASE_URL")
	mustBind("observability.enabled", "LABELFORGE_TRACING")
	mustBind("observability.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data. Full-width
// blocks avoid accidental substring matches against real secret content.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging: short secrets fully, long
// ones keeping the first and last two characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON masks sensitive fields.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.APIKey = maskSecret(a.APIKey)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
