package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/streakup/habit-tracker/internal/api/metrics"
	"github.com/streakup/habit-tracker/internal/core/domain"
	"github.com/streakup/habit-tracker/internal/core/ports"
)

const (
	msgRegistered    = "User registered successfully!"
	msgUsernameTaken = "Username is already taken!"
)

type AuthHandler struct {
	authService ports.AuthService
	metrics     *metrics.Metrics
}

// NewAuthHandler builds the handler. m may be nil.
func NewAuthHandler(authService ports.AuthService, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{authService: authService, metrics: m}
}

// Register creates a new user account.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      plain
// @Param        body  body      credentialsRequest  true  "Username and password"
// @Success      200   {string}  string              "User registered successfully!"
// @Failure      400   {string}  string              "Username is already taken!"
// @Failure      500   {object}  errorResponse
// @Router       /api/auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req credentialsRequest
	if err := bindAndValidate(c, &req); err != nil {
		h.record(metrics.OpRegister, metrics.ResultFailure)
		return err
	}

	if _, err := h.authService.Register(c.Request().Context(), req.Username, req.Password); err != nil {
		switch {
		case errors.Is(err, domain.ErrUserExists):
			h.record(metrics.OpRegister, metrics.ResultFailure)
			return c.String(http.StatusBadRequest, msgUsernameTaken)
		case errors.Is(err, domain.ErrValidation):
			h.record(metrics.OpRegister, metrics.ResultFailure)
		default:
			h.record(metrics.OpRegister, metrics.ResultError)
		}
		return err
	}

	h.record(metrics.OpRegister, metrics.ResultSuccess)
	return c.String(http.StatusOK, msgRegistered)
}

// Login authenticates a user and returns a bearer token.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      credentialsRequest  true  "Username and password"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsRequest
	if err := bindAndValidate(c, &req); err != nil {
		h.record(metrics.OpLogin, metrics.ResultFailure)
		return err
	}

	token, err := h.authService.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			h.record(metrics.OpLogin, metrics.ResultFailure)
		} else {
			h.record(metrics.OpLogin, metrics.ResultError)
		}
		return err
	}

	h.record(metrics.OpLogin, metrics.ResultSuccess)
	return c.JSON(http.StatusOK, loginResponse{Token: token})
}

func (h *AuthHandler) record(op, result string) {
	if h.metrics != nil {
		h.metrics.AuthAttempt(op, result)
	}
}
