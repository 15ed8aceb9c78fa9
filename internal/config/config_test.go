package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NEUVOX_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, DefaultMaxTurns, cfg.MaxTurns)
	assert.InDelta(t, DefaultConfidenceThreshold, cfg.ConfidenceThreshold, 1e-9)
	assert.Equal(t, DefaultMaxScanBytes, cfg.MaxScanBytes)
	assert.Equal(t, DefaultRetentionDays, cfg.RetentionDays)
	assert.Equal(t, DefaultRetentionSchedule, cfg.RetentionSchedule)
	assert.Empty(t, cfg.CallbackURL)
	assert.Equal(t, filepath.Join(dir, "sessions.db"), cfg.SessionsDBPath())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("NEUVOX_DATA_DIR", t.TempDir())
	t.Setenv("NEUVOX_MAX_TURNS", "10")
	t.Setenv("NEUVOX_CONFIDENCE_THRESHOLD", "0.5")
	t.Setenv("NEUVOX_CALLBACK_URL", "https://guvnor.example.com/callback")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxTurns)
	assert.InDelta(t, 0.5, cfg.ConfidenceThreshold, 1e-9)
	assert.Equal(t, "https://guvnor.example.com/callback", cfg.CallbackURL)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		value string
	}{
		{"zero max_turns", "NEUVOX_MAX_TURNS", "0"},
		{"negative max_turns", "NEUVOX_MAX_TURNS", "-1"},
		{"threshold above one", "NEUVOX_CONFIDENCE_THRESHOLD", "1.5"},
		{"threshold zero", "NEUVOX_CONFIDENCE_THRESHOLD", "0"},
		{"zero scan bytes", "NEUVOX_MAX_SCAN_BYTES", "0"},
		{"negative retention", "NEUVOX_RETENTION_DAYS", "-7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NEUVOX_DATA_DIR", t.TempDir())
			t.Setenv(tt.env, tt.value)
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestEnsureDataDir(t *testing.T) {
	cfg := &Config{DataDir: filepath.Join(t.TempDir(), "nested", "neuvox")}
	require.NoError(t, cfg.EnsureDataDir())
	require.NoError(t, cfg.EnsureDataDir(), "idempotent")
}
