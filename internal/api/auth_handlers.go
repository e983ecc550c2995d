package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/courierchat/internal/users"
)

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

// LoginRequest exchanges credentials for a token.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ErrorResponse is a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
}

const minPasswordLength = 8

func (s *Server) register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "email is required"})
	}
	if len(req.Password) < minPasswordLength {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "password must be at least 8 characters"})
	}

	hash, err := users.HashPassword(req.Password)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to hash password"})
	}

	user, err := s.users.Create(c.Request().Context(), req.Email, req.DisplayName, "member", hash)
	if err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			return c.JSON(http.StatusConflict, ErrorResponse{Error: "email is already registered"})
		}
		log.Error().Err(err).Msg("register failed")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to create user"})
	}

	return c.JSON(http.StatusCreated, user)
}

func (s *Server) login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	user, err := s.users.GetByEmail(c.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			// Same response as a bad password; do not leak which one it was.
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
		}
		log.Error().Err(err).Msg("login lookup failed")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "login failed"})
	}

	if !users.CheckPassword(user.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
	}

	token, err := s.tokens.CreateToken(user)
	if err != nil {
		log.Error().Err(err).Msg("token signing failed")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "login failed"})
	}

	return c.JSON(http.StatusOK, token)
}
