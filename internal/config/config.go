// Package config loads service settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config is the complete service configuration.
type Config struct {
	Port      string `mapstructure:"port"`
	ProjectID string `mapstructure:"gcp_project_id"`
	Timezone  string `mapstructure:"timezone"`

	// MaxUploadMB bounds multipart uploads.
	MaxUploadMB int64 `mapstructure:"max_upload_mb"`

	GCS struct {
		Bucket       string `mapstructure:"bucket_name"`
		TemplatePath string `mapstructure:"template_path"`
	} `mapstructure:"gcs"`

	BigQuery struct {
		Dataset  string `mapstructure:"dataset"`
		Table    string `mapstructure:"table"`
		Location string `mapstructure:"location"`
	} `mapstructure:"bq"`

	Areas struct {
		SheetID   string `mapstructure:"sheet_id"`
		SheetName string `mapstructure:"sheet_name"`
	} `mapstructure:"areas"`

	Rates struct {
		Timeout  time.Duration `mapstructure:"timeout"`
		CacheTTL time.Duration `mapstructure:"cache_ttl"`
		RedisURL string        `mapstructure:"redis_url"`
		VESURL   string        `mapstructure:"ves_url"`
		EURURL   string        `mapstructure:"eur_url"`
		COPURL   string        `mapstructure:"cop_url"`
	} `mapstructure:"rates"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"port":              "PORT",
	"gcp_project_id":    "GCP_PROJECT_ID",
	"timezone":          "TIMEZONE",
	"max_upload_mb":     "MAX_UPLOAD_MB",
	"gcs.bucket_name":   "GCS_BUCKET_NAME",
	"gcs.template_path": "GCS_TEMPLATE_PATH",
	"bq.dataset":        "BQ_DATASET",
	"bq.table":          "BQ_TABLE",
	"bq.location":       "BQ_LOCATION",
	"areas.sheet_id":    "GOOGLE_SHEET_ID",
	"areas.sheet_name":  "AREAS_SHEET_NAME",
	"rates.timeout":     "RATES_TIMEOUT",
	"rates.cache_ttl":   "RATES_CACHE_TTL",
	"rates.redis_url":   "REDIS_URL",
	"rates.ves_url":     "RATES_VES_URL",
	"rates.eur_url":     "RATES_EUR_URL",
	"rates.cop_url":     "RATES_COP_URL",
	"log.level":         "LOG_LEVEL",
	"log.format":        "LOG_FORMAT",
}

// LoadEnv loads variables from path into the process environment when the
// file exists. Variables already set win.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("LoadEnv: %w", err)
	}
	return nil
}

// Load reads the configuration from the environment over the defaults and
// validates it.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("Load: binding %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("Load: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "9777")
	v.SetDefault("timezone", "America/Caracas")
	v.SetDefault("max_upload_mb", 32)

	v.SetDefault("gcs.template_path", "template/vzla/Plantilla-VZLA-CAPEX-2526.xlsx")

	v.SetDefault("bq.dataset", "ppto_capex")
	v.SetDefault("bq.table", "prioridades_pago_vzla")
	v.SetDefault("bq.location", "US")

	v.SetDefault("areas.sheet_name", "AREAS VZLA")

	v.SetDefault("rates.timeout", 10*time.Second)
	v.SetDefault("rates.cache_ttl", 30*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate checks value ranges. Missing cloud settings are not errors; the
// features that need them report themselves as not configured.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.MaxUploadMB < 1 || c.MaxUploadMB > 1024 {
		return fmt.Errorf("MAX_UPLOAD_MB must be between 1 and 1024, got: %d", c.MaxUploadMB)
	}
	if c.Rates.Timeout <= 0 {
		return fmt.Errorf("RATES_TIMEOUT must be positive, got: %s", c.Rates.Timeout)
	}
	if c.Rates.CacheTTL < 0 {
		return fmt.Errorf("RATES_CACHE_TTL must not be negative, got: %s", c.Rates.CacheTTL)
	}
	if lvl := strings.ToLower(c.Log.Level); lvl != "" {
		if _, err := zerolog.ParseLevel(lvl); err != nil {
			return fmt.Errorf("invalid log level: %s", c.Log.Level)
		}
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", c.Log.Format)
	}
	return nil
}

// Location returns the configured time zone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MaxUploadBytes is MaxUploadMB in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// HasGCS reports whether object storage is configured.
func (c *Config) HasGCS() bool { return c.GCS.Bucket != "" }

// HasBigQuery reports whether the warehouse is configured.
func (c *Config) HasBigQuery() bool { return c.ProjectID != "" }

// HasAreas reports whether the area sheet is configured.
func (c *Config) HasAreas() bool { return c.Areas.SheetID != "" }

// HasRedis reports whether the rate cache is configured.
func (c *Config) HasRedis() bool { return c.Rates.RedisURL != "" }
