package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef-test")
	t.Setenv("ADMIN_PASSWORD", "bullseye")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "darts.db", cfg.DatabasePath)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 20, cfg.EditRateLimit)
	assert.Equal(t, time.Minute, cfg.EditRateWindow)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("EDIT_RATE_LIMIT", "5")
	t.Setenv("EDIT_RATE_WINDOW", "30s")
	t.Setenv("CORS_ORIGINS", "http://board.local, http://stage.local")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.ServerPort)
	assert.Equal(t, 5, cfg.EditRateLimit)
	assert.Equal(t, 30*time.Second, cfg.EditRateWindow)
	assert.Equal(t, []string{"http://board.local", "http://stage.local"}, cfg.CORSOrigins)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{"JWT_SECRET": ""}},
		{"short secret", map[string]string{"JWT_SECRET": "short"}},
		{"missing admin password", map[string]string{"ADMIN_PASSWORD": ""}},
		{"bad port", map[string]string{"SERVER_PORT": "eighty"}},
		{"port out of range", map[string]string{"SERVER_PORT": "70000"}},
		{"zero rate limit", map[string]string{"EDIT_RATE_LIMIT": "0"}},
		{"bad window", map[string]string{"EDIT_RATE_WINDOW": "soon"}},
		{"negative window", map[string]string{"EDIT_RATE_WINDOW": "-1m"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
