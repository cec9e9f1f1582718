package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, "PORT", "")
	setEnv(t, "HISTORY_SAMPLE_SIZE", "")
	setEnv(t, "DEFAULT_SENSITIVITY", "")
	setEnv(t, "DEFAULT_AUTO_BLOCK_THRESHOLD", "")
	setEnv(t, "STORE_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultHistorySampleSize, cfg.HistorySampleSize)
	assert.Equal(t, DefaultSensitivityLevel, cfg.DefaultSensitivity)
	assert.Equal(t, DefaultAutoBlockThreshold, cfg.DefaultThreshold)
	assert.Equal(t, DefaultStoreTimeout, cfg.StoreTimeout)
	assert.Equal(t, DefaultRateLimitRPM, cfg.RateLimitRPM)
}

func TestLoad_Overrides(t *testing.T) {
	setEnv(t, "PORT", "9090")
	setEnv(t, "HISTORY_SAMPLE_SIZE", "50")
	setEnv(t, "DEFAULT_SENSITIVITY", "high")
	setEnv(t, "STORE_TIMEOUT", "500ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 50, cfg.HistorySampleSize)
	assert.Equal(t, "high", cfg.DefaultSensitivity)
	assert.Equal(t, 500*time.Millisecond, cfg.StoreTimeout)
}

func TestLoad_InvalidSensitivity(t *testing.T) {
	setEnv(t, "DEFAULT_SENSITIVITY", "extreme")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "DEFAULT_SENSITIVITY")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "zero sample size",
			mutate:  func(c *Config) { c.HistorySampleSize = 0 },
			wantErr: "HISTORY_SAMPLE_SIZE",
		},
		{
			name:    "threshold above 100",
			mutate:  func(c *Config) { c.DefaultThreshold = 101 },
			wantErr: "DEFAULT_AUTO_BLOCK_THRESHOLD",
		},
		{
			name:    "negative threshold",
			mutate:  func(c *Config) { c.DefaultThreshold = -1 },
			wantErr: "DEFAULT_AUTO_BLOCK_THRESHOLD",
		},
		{
			name:    "bad sensitivity",
			mutate:  func(c *Config) { c.DefaultSensitivity = "paranoid" },
			wantErr: "DEFAULT_SENSITIVITY",
		},
		{
			name:    "zero store timeout",
			mutate:  func(c *Config) { c.StoreTimeout = 0 },
			wantErr: "STORE_TIMEOUT",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{
				HistorySampleSize:  DefaultHistorySampleSize,
				DefaultSensitivity: DefaultSensitivityLevel,
				DefaultThreshold:   DefaultAutoBlockThreshold,
				StoreTimeout:       DefaultStoreTimeout,
			}
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}
