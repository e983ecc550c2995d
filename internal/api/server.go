// Package api exposes the HTTP surface: the liveness endpoint, the account
// endpoints that mint tokens, the websocket relay endpoint, and read-only
// conversation history.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/courierchat/internal/api/auth"
	"github.com/courierchat/internal/config"
	"github.com/courierchat/internal/identity"
	"github.com/courierchat/internal/relay"
	"github.com/courierchat/internal/store"
	"github.com/courierchat/internal/users"
)

// Server represents the API server
type Server struct {
	echo     *echo.Echo
	cfg      *config.Config
	engine   *relay.Engine
	store    *store.Postgres
	users    *users.Repository
	tokens   *auth.TokenService
	verifier *identity.Verifier
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, engine *relay.Engine, st *store.Postgres, repo *users.Repository) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(requestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server := &Server{
		echo:     e,
		cfg:      cfg,
		engine:   engine,
		store:    st,
		users:    repo,
		tokens:   auth.NewTokenService(cfg.Auth.Secret, cfg.Auth.AccessTokenTTL),
		verifier: identity.NewVerifier(cfg.Auth.Secret),
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// requestLogger emits one zerolog line per request.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	})
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	// Liveness endpoint; uptime monitors ping this
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"online": s.engine.Directory().Len(),
		})
	})

	// Websocket relay endpoint
	s.echo.GET("/ws", s.handleWebsocket)

	// API v1 group
	v1 := s.echo.Group("/api/v1")

	v1.POST("/auth/register", s.register)
	v1.POST("/auth/login", s.login)

	authed := v1.Group("", auth.Middleware(s.verifier))
	authed.GET("/conversations", s.listConversations)
	authed.GET("/conversations/:id/messages", s.listMessages)
}

// Start begins the API server and blocks until an interrupt arrives, then
// shuts down gracefully.
func (s *Server) Start() error {
	go func() {
		addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("shutting down the server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info().Msg("shutting down")

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return s.echo.Shutdown(ctx)
}
