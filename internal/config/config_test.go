package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "load default configuration",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "0.0.0.0", cfg.ServerHost)
				assert.Equal(t, 8080, cfg.ServerPort)
				assert.Equal(t, "postgres", cfg.DBDriver)
				assert.Equal(t, 25, cfg.DBMaxOpenConnections)
				assert.Equal(t, 5, cfg.DBMaxIdleConnections)
				assert.Equal(t, 5*time.Minute, cfg.DBConnMaxLifetime)
				assert.Equal(t, "info", cfg.LogLevel)
				assert.Equal(t, 60, cfg.RateLimitIPPerMinute)
				assert.Equal(t, 5*time.Minute, cfg.RateLimitFirstBlock)
				assert.Equal(t, time.Hour, cfg.RateLimitRepeatBlock)
				assert.Equal(t, 10, cfg.RateLimitIndefiniteThreshold)
				assert.Equal(t, 90*24*time.Hour, cfg.KeyRotationGracePeriod)
				assert.Equal(t, 2*time.Second, cfg.AuditAppendTimeout)
				assert.Equal(t, 5, cfg.AuditRetryBudget)
				assert.Equal(t, 2*time.Minute, cfg.ThreatDecayHalfLife)
				assert.Equal(t, 60.0, cfg.ThreatHighThreshold)
				assert.Equal(t, 85.0, cfg.ThreatCriticalThreshold)
				assert.Equal(t, "lacbot_security", cfg.MetricsNamespace)
			},
		},
		{
			name: "load custom rate limit configuration",
			envVars: map[string]string{
				"RATE_LIMIT_IP_PER_MINUTE":        "120",
				"RATE_LIMIT_USER_PER_MINUTE":      "10",
				"RATE_LIMIT_FIRST_BLOCK_MINUTES":  "1",
				"RATE_LIMIT_INDEFINITE_THRESHOLD": "3",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 120, cfg.RateLimitIPPerMinute)
				assert.Equal(t, 10, cfg.RateLimitUserPerMinute)
				assert.Equal(t, time.Minute, cfg.RateLimitFirstBlock)
				assert.Equal(t, 3, cfg.RateLimitIndefiniteThreshold)
			},
		},
		{
			name: "load custom threat configuration",
			envVars: map[string]string{
				"THREAT_DECAY_HALF_LIFE_SECONDS": "30",
				"THREAT_HIGH_THRESHOLD":          "50.5",
				"THREAT_CRITICAL_THRESHOLD":      "90.0",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 30*time.Second, cfg.ThreatDecayHalfLife)
				assert.Equal(t, 50.5, cfg.ThreatHighThreshold)
				assert.Equal(t, 90.0, cfg.ThreatCriticalThreshold)
			},
		},
		{
			name: "load custom database configuration",
			envVars: map[string]string{
				"DB_DRIVER":               "mysql",
				"DB_CONNECTION_STRING":    "user:password@tcp(localhost:3306)/testdb",
				"DB_MAX_OPEN_CONNECTIONS": "50",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "mysql", cfg.DBDriver)
				assert.Equal(t, "user:password@tcp(localhost:3306)/testdb", cfg.DBConnectionString)
				assert.Equal(t, 50, cfg.DBMaxOpenConnections)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				os.Setenv(key, value)
			}
			defer func() {
				for key := range tt.envVars {
					os.Unsetenv(key)
				}
			}()

			cfg := Load()
			tt.validate(t, cfg)
		})
	}
}

func TestGetGinMode(t *testing.T) {
	tests := []struct {
		logLevel string
		expected string
	}{
		{"debug", "debug"},
		{"info", "release"},
		{"warn", "release"},
		{"error", "release"},
		{"unknown", "release"},
	}

	for _, tt := range tests {
		t.Run(tt.logLevel, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}
			assert.Equal(t, tt.expected, cfg.GetGinMode())
		})
	}
}
