package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/streakup/habit-tracker/internal/core/domain"
)

// ctxPrincipal returns the principal set by the Authenticate middleware.
// Its absence means the request is unauthenticated; the reason is not kept.
func ctxPrincipal(c echo.Context) (*domain.Principal, error) {
	p, ok := domain.PrincipalFromContext(c.Request().Context())
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	return p, nil
}
