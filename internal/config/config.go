// Package config holds operator-level configuration for a Neuvox
// installation: storage paths, engagement limits, callback endpoint, and
// retention. Set via env vars (NEUVOX_*) or a neuvox.config.yaml file.
//
// Engagement limits live here rather than in code so an evaluator run can
// shorten the turn budget without a rebuild; the defaults are the
// production values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Viper keys. Each maps to an env var with the NEUVOX_ prefix
// (e.g. "callback_url" -> NEUVOX_CALLBACK_URL) and to a YAML field in
// neuvox.config.yaml.
const (
	KeyDataDir             = "data_dir"
	KeyMaxTurns            = "max_turns"
	KeyConfidenceThreshold = "confidence_threshold"
	KeyMaxScanBytes        = "max_scan_bytes"
	KeyPatternFile         = "pattern_file"
	KeyCallbackURL         = "callback_url"
	KeyCallbackSigningKey  = "callback_signing_key"
	KeyRetentionDays       = "retention_days"
	KeyRetentionSchedule   = "retention_schedule"
)

// Defaults.
const (
	DefaultMaxTurns            = 20
	DefaultConfidenceThreshold = 0.85
	DefaultMaxScanBytes        = 10000
	DefaultRetentionDays       = 30
	DefaultRetentionSchedule   = "0 3 * * *"
)

// Config holds resolved operator-level configuration.
type Config struct {
	DataDir             string  // base directory for all state (~/.neuvox)
	MaxTurns            int     // turn budget before forced termination
	ConfidenceThreshold float64 // terminate once accumulated confidence reaches this
	MaxScanBytes        int     // extractor input truncation cap
	PatternFile         string  // optional recognizers.yaml overriding embedded defaults
	CallbackURL         string  // terminal callback endpoint; empty disables dispatch
	CallbackSigningKey  string  // HMAC key for callback payloads; empty disables signing
	RetentionDays       int     // purge terminated sessions older than this; 0 disables
	RetentionSchedule   string  // cron expression for the retention sweep
}

// SessionsDBPath returns the full path to the sessions SQLite database.
func (c *Config) SessionsDBPath() string {
	return filepath.Join(c.DataDir, "sessions.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

func init() {
	viper.SetEnvPrefix("NEUVOX")
	viper.AutomaticEnv()
	viper.SetDefault(KeyMaxTurns, DefaultMaxTurns)
	viper.SetDefault(KeyConfidenceThreshold, DefaultConfidenceThreshold)
	viper.SetDefault(KeyMaxScanBytes, DefaultMaxScanBytes)
	viper.SetDefault(KeyRetentionDays, DefaultRetentionDays)
	viper.SetDefault(KeyRetentionSchedule, DefaultRetentionSchedule)
}

// Load reads configuration from Viper (env vars, config file, defaults)
// and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:             resolveDataDir(),
		MaxTurns:            viper.GetInt(KeyMaxTurns),
		ConfidenceThreshold: viper.GetFloat64(KeyConfidenceThreshold),
		MaxScanBytes:        viper.GetInt(KeyMaxScanBytes),
		PatternFile:         viper.GetString(KeyPatternFile),
		CallbackURL:         viper.GetString(KeyCallbackURL),
		CallbackSigningKey:  viper.GetString(KeyCallbackSigningKey),
		RetentionDays:       viper.GetInt(KeyRetentionDays),
		RetentionSchedule:   viper.GetString(KeyRetentionSchedule),
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func resolveDataDir() string {
	if dir := viper.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".neuvox"
	}
	return filepath.Join(home, ".neuvox")
}

func (c *Config) validate() error {
	if c.MaxTurns <= 0 {
		return fmt.Errorf("max_turns must be positive, got %d", c.MaxTurns)
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in (0,1], got %g", c.ConfidenceThreshold)
	}
	if c.MaxScanBytes <= 0 {
		return fmt.Errorf("max_scan_bytes must be positive, got %d", c.MaxScanBytes)
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention_days must not be negative, got %d", c.RetentionDays)
	}
	return nil
}
