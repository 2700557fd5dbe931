package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{ListenPort: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("MatchWindow converts seconds to duration", func(t *testing.T) {
		cfg := &Config{RecordingMatchWindowSeconds: 30}
		assert.Equal(t, 30*time.Second, cfg.MatchWindow())
	})

	t.Run("Retention converts days to duration", func(t *testing.T) {
		cfg := &Config{RecordingRetentionDays: 3}
		assert.Equal(t, 72*time.Hour, cfg.Retention())
	})

	t.Run("SettleDelay converts seconds to duration", func(t *testing.T) {
		cfg := &Config{RecordingSettleSeconds: 2}
		assert.Equal(t, 2*time.Second, cfg.SettleDelay())
	})
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			StateDSN:                    "file:agent.db",
			RecordingMatchThreshold:     50,
			RecordingMatchWindowSeconds: 30,
			RecordingRetentionDays:      3,
			RecordingSettleSeconds:      2,
		}
	}

	t.Run("accepts defaults", func(t *testing.T) {
		cfg := valid()
		assert.NoError(t, cfg.Validate())
	})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero threshold", func(c *Config) { c.RecordingMatchThreshold = 0 }},
		{"zero window", func(c *Config) { c.RecordingMatchWindowSeconds = 0 }},
		{"zero retention", func(c *Config) { c.RecordingRetentionDays = 0 }},
		{"negative settle", func(c *Config) { c.RecordingSettleSeconds = -1 }},
		{"empty state dsn", func(c *Config) { c.StateDSN = "" }},
	}
	for _, tc := range tests {
		t.Run("rejects "+tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads config with defaults", func(t *testing.T) {
		unsetenv(t, "LISTEN_PORT", "LOG_LEVEL", "APP_VERSION", "ADB_PATH", "STORAGE_ROOT",
			"RECORDING_MATCH_THRESHOLD", "RECORDING_MATCH_WINDOW_SECONDS", "RECORDING_RETENTION_DAYS",
			"AUTO_UPLOAD_RECORDING", "STATE_DSN")
		t.Setenv("SERVER_HOST", "crm.example.com")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "crm.example.com", cfg.ServerHost)
		assert.Equal(t, 8090, cfg.ListenPort)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, "1.0.0", cfg.AppVersion)
		assert.Equal(t, "adb", cfg.ADBPath)
		assert.Equal(t, "/storage/emulated/0", cfg.StorageRoot)
		assert.Equal(t, 50, cfg.RecordingMatchThreshold)
		assert.Equal(t, 30, cfg.RecordingMatchWindowSeconds)
		assert.Equal(t, 3, cfg.RecordingRetentionDays)
		assert.True(t, cfg.AutoUploadRecording)
	})

	t.Run("loads custom values", func(t *testing.T) {
		t.Setenv("LISTEN_PORT", "9100")
		t.Setenv("RECORDING_MATCH_THRESHOLD", "60")
		t.Setenv("AUTO_UPLOAD_RECORDING", "false")
		t.Setenv("LOG_LEVEL", "debug")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9100, cfg.ListenPort)
		assert.Equal(t, 60, cfg.RecordingMatchThreshold)
		assert.False(t, cfg.AutoUploadRecording)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("fails on malformed number", func(t *testing.T) {
		t.Setenv("LISTEN_PORT", "not-a-port")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("fails validation", func(t *testing.T) {
		t.Setenv("RECORDING_RETENTION_DAYS", "0")

		_, err := Load()
		assert.Error(t, err)
	})
}

// unsetenv clears keys for the duration of the test and restores them afterwards.
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}
