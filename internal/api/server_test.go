package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierchat/internal/config"
	"github.com/courierchat/internal/presence"
	"github.com/courierchat/internal/relay"
)

func newTestServer() *Server {
	cfg := &config.Config{}
	cfg.Server.Port = 8080
	cfg.Auth.Secret = "s3cret"
	cfg.Auth.AccessTokenTTL = time.Hour

	dir := presence.NewDirectory[*relay.Session](config.DuplicateReplace)
	engine := relay.NewEngine(dir, nil, nil, time.Second, zerolog.Nop())

	return NewServer(cfg, engine, nil, nil)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
	assert.Contains(t, rec.Body.String(), `"online":0`)
}

func TestRequestsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	orig := zlog.Logger
	zlog.Logger = zerolog.New(&buf)
	t.Cleanup(func() { zlog.Logger = orig })

	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, buf.String(), `"uri":"/health"`)
	assert.Contains(t, buf.String(), `"method":"GET"`)
	assert.Contains(t, buf.String(), `"status":200`)
}
