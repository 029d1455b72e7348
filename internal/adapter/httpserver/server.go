// Package httpserver is the HTTP gateway: JSON API, WebSocket route, probes,
// metrics and the single-page frontend.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/streamroom/internal/adapter/metrics"
	"github.com/pscheid92/streamroom/internal/domain"
	"github.com/pscheid92/streamroom/internal/platform/config"
)

type roomService interface {
	Register(ctx context.Context, username string) (domain.User, error)
	ListPrivilegedUsers(ctx context.Context, requester string) ([]domain.User, error)
	GetPoll(ctx context.Context) ([]domain.PollOption, error)
	AddLike(ctx context.Context, username string) ([]string, error)
	GetLikes(ctx context.Context) ([]string, error)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app roomService

	websocketHandler echo.HandlerFunc
	metricsHandler   http.Handler
	httpMetrics      *metrics.HTTPMetrics

	healthChecks []HealthCheck
	clock        clockwork.Clock
	startTime    time.Time
}

// Dependencies are the collaborators the server routes to. Metrics fields may be nil.
type Dependencies struct {
	App              roomService
	WebSocketHandler echo.HandlerFunc
	MetricsHandler   http.Handler
	HTTPMetrics      *metrics.HTTPMetrics
	HealthChecks     []HealthCheck
	Clock            clockwork.Clock
}

func NewServer(cfg *config.Config, deps Dependencies) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	srv := &Server{
		echo:             e,
		config:           cfg,
		app:              deps.App,
		websocketHandler: deps.WebSocketHandler,
		metricsHandler:   deps.MetricsHandler,
		httpMetrics:      deps.HTTPMetrics,
		healthChecks:     deps.HealthChecks,
		clock:            clock,
		startTime:        clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP exposes the router, mainly for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
