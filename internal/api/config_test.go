package api

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg := LoadServerConfig()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, int64(1048576), cfg.MaxRequestSize)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Contains(t, cfg.CORSAllowedHeaders, "X-Actor-ID")
	assert.NoError(t, cfg.Validate())
}

func TestLoadServerConfigFromEnvironment(t *testing.T) {
	t.Setenv("HERDBOOK_SERVER_PORT", "9090")
	t.Setenv("HERDBOOK_SERVER_HOST", "127.0.0.1")
	t.Setenv("HERDBOOK_SERVER_READ_TIMEOUT", "10s")
	t.Setenv("HERDBOOK_SERVER_LOG_LEVEL", "debug")
	t.Setenv("HERDBOOK_CORS_ALLOWED_ORIGINS", "https://app.example.com,https://admin.example.com")

	cfg := LoadServerConfig()

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 10*time.Second, cfg.ReadTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t,
		[]string{"https://app.example.com", "https://admin.example.com"},
		cfg.CORSAllowedOrigins,
	)
	assert.Equal(t, "127.0.0.1:9090", cfg.Address())
}

func TestServerConfigValidate(t *testing.T) {
	valid := func() *ServerConfig {
		return &ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxRequestSize:  1048576,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr error
	}{
		{
			name:   "valid configuration",
			mutate: func(*ServerConfig) {},
		},
		{
			name:    "zero port",
			mutate:  func(c *ServerConfig) { c.Port = 0 },
			wantErr: ErrInvalidPort,
		},
		{
			name:    "port above range",
			mutate:  func(c *ServerConfig) { c.Port = 70000 },
			wantErr: ErrInvalidPort,
		},
		{
			name:    "empty host",
			mutate:  func(c *ServerConfig) { c.Host = "" },
			wantErr: ErrEmptyHost,
		},
		{
			name:    "zero read timeout",
			mutate:  func(c *ServerConfig) { c.ReadTimeout = 0 },
			wantErr: ErrInvalidReadTimeout,
		},
		{
			name:    "negative write timeout",
			mutate:  func(c *ServerConfig) { c.WriteTimeout = -time.Second },
			wantErr: ErrInvalidWriteTimeout,
		},
		{
			name:    "zero shutdown timeout",
			mutate:  func(c *ServerConfig) { c.ShutdownTimeout = 0 },
			wantErr: ErrInvalidShutdownTimeout,
		},
		{
			name:    "zero max request size",
			mutate:  func(c *ServerConfig) { c.MaxRequestSize = 0 },
			wantErr: ErrInvalidMaxRequestSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestToCORSConfig(t *testing.T) {
	cfg := &ServerConfig{
		CORSAllowedOrigins: []string{"https://app.example.com"},
		CORSAllowedMethods: []string{"GET", "POST"},
		CORSAllowedHeaders: []string{"Content-Type"},
		CORSMaxAge:         3600,
	}

	cors := cfg.ToCORSConfig()
	require.NotNil(t, cors)

	assert.Equal(t, []string{"https://app.example.com"}, cors.GetAllowedOrigins())
	assert.Equal(t, []string{"GET", "POST"}, cors.GetAllowedMethods())
	assert.Equal(t, []string{"Content-Type"}, cors.GetAllowedHeaders())
	assert.Equal(t, 3600, cors.GetMaxAge())
}
