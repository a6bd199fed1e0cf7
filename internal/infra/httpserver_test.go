package infra

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPServerUsesConfiguredTimeouts(t *testing.T) {
	cfg := &Config{
		Port:                  "8080",
		HTTPReadTimeout:       15 * time.Second,
		HTTPReadHeaderTimeout: 5 * time.Second,
		HTTPWriteTimeout:      30 * time.Second,
		HTTPIdleTimeout:       60 * time.Second,
	}
	srv := NewHTTPServer(cfg, http.NewServeMux())
	require.NotNil(t, srv.server)

	assert.Equal(t, ":8080", srv.server.Addr)
	assert.Equal(t, cfg.HTTPReadTimeout, srv.server.ReadTimeout)
	assert.Equal(t, cfg.HTTPReadHeaderTimeout, srv.server.ReadHeaderTimeout)
	assert.Equal(t, cfg.HTTPWriteTimeout, srv.server.WriteTimeout)
	assert.Equal(t, cfg.HTTPIdleTimeout, srv.server.IdleTimeout)
}

func TestLoadConfigDefaultsHeaderTimeout(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/app")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.HTTPReadHeaderTimeout)
}
