package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/text2tracks/backend/internal/constants"
)

// Config holds all application configuration
type Config struct {
	Port              string
	DatabaseURL       string
	S3Endpoint        string
	S3Bucket          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	DatasetCDNBase    string
	ScratchDir        string
	ModelPath         string
	LogLevel          string
	LogFormat         string
}

// Load loads configuration from environment variables with defaults.
// Connectivity values (database, object storage, model path) have no
// defaults: their absence selects degraded behavior instead of failing,
// and MissingKeys reports them so startup is never silently degraded.
func Load() *Config {
	return &Config{
		Port:              getEnv("PORT", constants.DefaultPort),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		S3Endpoint:        getEnv("S3_ENDPOINT_URL", ""),
		S3Bucket:          getEnv("S3_BUCKET_NAME", ""),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3Region:          getEnv("S3_REGION_NAME", constants.DefaultS3Region),
		DatasetCDNBase:    getEnv("DATASET_CDN_BASE", constants.DefaultCDNBase),
		ScratchDir:        getEnv("SCRATCH_DIR", constants.DefaultScratchDir),
		ModelPath:         getEnv("CLAP_MODEL_PATH", ""),
		LogLevel:          getEnv("LOG_LEVEL", constants.DefaultLogLevel),
		LogFormat:         getEnv("LOG_FORMAT", constants.DefaultLogFormat),
	}
}

// Validate validates the configuration and returns detailed errors.
// Absent connectivity values are legal; only malformed values fail.
func (c *Config) Validate() error {
	var errors []string

	// Validate Port
	if c.Port == "" {
		errors = append(errors, "PORT cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("PORT must be a valid number, got: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be between 1 and 65535, got: %d", port))
		}
	}

	// Validate S3Endpoint when set
	if c.S3Endpoint != "" {
		if u, err := url.Parse(c.S3Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("S3_ENDPOINT_URL is not a valid URL: %s", c.S3Endpoint))
		}
	}

	// Validate DatasetCDNBase
	if c.DatasetCDNBase == "" {
		errors = append(errors, "DATASET_CDN_BASE cannot be empty")
	} else {
		if u, err := url.Parse(c.DatasetCDNBase); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("DATASET_CDN_BASE is not a valid URL: %s", c.DatasetCDNBase))
		}
	}

	// Validate ScratchDir
	if c.ScratchDir == "" {
		errors = append(errors, "SCRATCH_DIR cannot be empty")
	}

	// Validate LogLevel
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	// Validate LogFormat
	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.LogFormat] {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: text, json, got: %s", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// HasDatabase reports whether a catalog database is configured.
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// HasBlobStore reports whether object storage is fully configured.
func (c *Config) HasBlobStore() bool {
	return c.S3Endpoint != "" && c.S3Bucket != "" && c.S3AccessKeyID != "" && c.S3SecretAccessKey != ""
}

// MissingKeys lists the connectivity variables that are unset.
func (c *Config) MissingKeys() []string {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.S3Endpoint == "" {
		missing = append(missing, "S3_ENDPOINT_URL")
	}
	if c.S3Bucket == "" {
		missing = append(missing, "S3_BUCKET_NAME")
	}
	if c.S3AccessKeyID == "" {
		missing = append(missing, "S3_ACCESS_KEY_ID")
	}
	if c.S3SecretAccessKey == "" {
		missing = append(missing, "S3_SECRET_ACCESS_KEY")
	}
	return missing
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
