// Package httpapi exposes the administration surface over HTTP: login
// through the configured identity resolver, pulse user registration and
// edits, queue administration and the admin-only listings.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pulseops/pulseguardian/internal/logging"
	"github.com/pulseops/pulseguardian/internal/server/config"
	"github.com/pulseops/pulseguardian/internal/server/identity"
	"github.com/pulseops/pulseguardian/internal/server/services"
)

const sessionCookie = "session"
const stateCookie = "auth_state"

// Server binds the HTTP routes to the services layer.
type Server struct {
	echo       *echo.Echo
	config     *config.Config
	logger     logging.Logger
	users      *services.UserService
	pulseUsers *services.PulseUserService
	queues     *services.QueueService
	resolver   identity.Resolver
}

func NewServer(cfg *config.Config, logger logging.Logger,
	us *services.UserService, ps *services.PulseUserService, qs *services.QueueService,
	resolver identity.Resolver) *Server {

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:       e,
		config:     cfg,
		logger:     logger.With("module", "httpapi"),
		users:      us,
		pulseUsers: ps,
		queues:     qs,
		resolver:   resolver,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo

	e.GET("/auth/login", s.handleLogin)
	e.GET("/auth/callback", s.handleCallback)
	e.POST("/auth/logout", s.handleLogout)

	auth := e.Group("", s.requireLogin)
	auth.GET("/", s.handleProfile)
	auth.POST("/register", s.handleRegister)
	auth.POST("/update_info", s.handleUpdateInfo)
	auth.GET("/pulse-users", s.handlePulseUserList)
	auth.DELETE("/pulse-user/:username", s.handlePulseUserDelete)
	auth.GET("/queues", s.handleQueueList)
	// Queue names may contain slashes, so these are wildcard routes.
	auth.GET("/queue/*", s.handleQueueBindings)
	auth.DELETE("/queue/*", s.handleQueueDelete)

	admin := auth.Group("", s.requireAdmin)
	admin.GET("/users", s.handleUserList)
	admin.PUT("/user/:email/set-admin", s.handleSetAdmin)
	admin.POST("/queues/reconcile", s.handleReconcile)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.echo.Start(s.config.EndpointAddr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.logger.Info(ctx, "http server started", "addr", s.config.EndpointAddr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

// secureCookies reports whether session cookies should carry the Secure
// flag. The fake resolver runs over plain http in development.
func (s *Server) secureCookies() bool {
	_, fake := s.resolver.(*identity.FakeResolver)
	return !fake
}
