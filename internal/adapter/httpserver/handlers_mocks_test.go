package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/streamroom/internal/domain"
	"github.com/pscheid92/streamroom/internal/platform/config"
)

// --- Mock implementations ---

type mockRoomService struct {
	registerFn            func(ctx context.Context, username string) (domain.User, error)
	listPrivilegedUsersFn func(ctx context.Context, requester string) ([]domain.User, error)
	getPollFn             func(ctx context.Context) ([]domain.PollOption, error)
	addLikeFn             func(ctx context.Context, username string) ([]string, error)
	getLikesFn            func(ctx context.Context) ([]string, error)
}

func (m *mockRoomService) Register(ctx context.Context, username string) (domain.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, username)
	}
	return domain.User{Username: username}, nil
}

func (m *mockRoomService) ListPrivilegedUsers(ctx context.Context, requester string) ([]domain.User, error) {
	if m.listPrivilegedUsersFn != nil {
		return m.listPrivilegedUsersFn(ctx, requester)
	}
	return []domain.User{}, nil
}

func (m *mockRoomService) GetPoll(ctx context.Context) ([]domain.PollOption, error) {
	if m.getPollFn != nil {
		return m.getPollFn(ctx)
	}
	return []domain.PollOption{}, nil
}

func (m *mockRoomService) AddLike(ctx context.Context, username string) ([]string, error) {
	if m.addLikeFn != nil {
		return m.addLikeFn(ctx, username)
	}
	return []string{username}, nil
}

func (m *mockRoomService) GetLikes(ctx context.Context) ([]string, error) {
	if m.getLikesFn != nil {
		return m.getLikesFn(ctx)
	}
	return []string{}, nil
}

// --- Test helpers ---

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:             "test",
		Port:               "0",
		StoreBackend:       config.BackendMemory,
		StaticDir:          "does-not-exist",
		AllowedOrigins:     []string{"*"},
		RateLimitPerSecond: 100,
		RateLimitBurst:     100,
	}
}

func newTestServer(t *testing.T, app roomService, opts ...func(*config.Config, *Dependencies)) *Server {
	t.Helper()

	cfg := testConfig()
	deps := Dependencies{
		App:   app,
		Clock: clockwork.NewFakeClock(),
	}
	for _, opt := range opts {
		opt(cfg, &deps)
	}

	return NewServer(cfg, deps)
}

func withHealthChecks(checks ...HealthCheck) func(*config.Config, *Dependencies) {
	return func(_ *config.Config, d *Dependencies) {
		d.HealthChecks = checks
	}
}

func withConfig(mutate func(*config.Config)) func(*config.Config, *Dependencies) {
	return func(c *config.Config, _ *Dependencies) {
		mutate(c)
	}
}

// callHandler wraps a handler with error middleware, matching production behavior
func callHandler(handler echo.HandlerFunc, c echo.Context) error {
	return ErrorHandlingMiddleware(nil)(handler)(c)
}

// serve routes a request through the full middleware stack.
func serve(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return serveRequest(srv, req)
}

func serveRequest(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}
