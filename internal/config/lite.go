// Package config provides configuration management for the engine binaries.
// This file contains the lightweight configuration used by the MCP server and
// the CLI, which need no network services.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for the audit database

	// Audit is opt-in; records outlive the request that produced them.
	AuditEnabled bool

	// Review sessions
	SessionMaxEntries int
	SessionTTL        time.Duration

	// Reference tables
	ReferenceOverlay string // Optional YAML overlay path

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".biomarker-engine")

	return &LiteConfig{
		DataDir:           dataDir,
		AuditEnabled:      false,
		SessionMaxEntries: 1000,
		SessionTTL:        30 * time.Minute,
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("BIOMARKER_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("BIOMARKER_AUDIT_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AuditEnabled = b
		}
	}

	if v := os.Getenv("BIOMARKER_SESSION_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionMaxEntries = n
		}
	}
	if v := os.Getenv("BIOMARKER_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SessionTTL = d
		}
	}

	cfg.ReferenceOverlay = os.Getenv("BIOMARKER_REFERENCE_OVERLAY")

	if v := os.Getenv("BIOMARKER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BIOMARKER_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// AuditDBPath returns the path to the audit SQLite database.
func (c *LiteConfig) AuditDBPath() string {
	return filepath.Join(c.DataDir, "audit.db")
}

// ExportDir returns the directory for JSON audit exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0o700)
}
