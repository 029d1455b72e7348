package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/streamroom/internal/domain"
	apperrors "github.com/pscheid92/streamroom/internal/platform/errors"
)

type usernameRequest struct {
	Username string `json:"username"`
}

func (s *Server) registerAPIRoutes() {
	limited := newRateLimiter(s.config.RateLimitPerSecond, s.config.RateLimitBurst)

	api := s.echo.Group("/api")
	api.POST("/register", s.handleRegister, limited)
	api.GET("/poll", s.handleGetPoll)
	api.GET("/users", s.handleListUsers)
	api.POST("/likes", s.handleAddLike, limited)
	api.GET("/likes", s.handleGetLikes)
}

func bindUsername(c echo.Context) (string, error) {
	var req usernameRequest
	if err := c.Bind(&req); err != nil {
		return "", apperrors.ValidationError("invalid request body")
	}
	if domain.IsBlank(req.Username) {
		return "", apperrors.ValidationError("username is required")
	}
	return req.Username, nil
}

func (s *Server) handleRegister(c echo.Context) error {
	username, err := bindUsername(c)
	if err != nil {
		return err
	}

	user, err := s.app.Register(c.Request().Context(), username)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}

	if err := c.JSON(http.StatusOK, user); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetPoll(c echo.Context) error {
	poll, err := s.app.GetPoll(c.Request().Context())
	if err != nil {
		return fmt.Errorf("get poll: %w", err)
	}

	if err := c.JSON(http.StatusOK, poll); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// handleListUsers returns the participant list to the host and an empty list
// to everyone else.
func (s *Server) handleListUsers(c echo.Context) error {
	users, err := s.app.ListPrivilegedUsers(c.Request().Context(), c.QueryParam("username"))
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	if err := c.JSON(http.StatusOK, users); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleAddLike(c echo.Context) error {
	username, err := bindUsername(c)
	if err != nil {
		return err
	}

	if _, err := s.app.AddLike(c.Request().Context(), username); err != nil {
		return fmt.Errorf("add like: %w", err)
	}

	if err := c.JSON(http.StatusOK, map[string]string{"status": "success"}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetLikes(c echo.Context) error {
	likes, err := s.app.GetLikes(c.Request().Context())
	if err != nil {
		return fmt.Errorf("get likes: %w", err)
	}

	response := domain.Likes{StreamID: domain.DefaultStreamID, Likes: likes}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
