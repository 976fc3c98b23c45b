package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/streakup/habit-tracker/internal/core/domain"
	"github.com/streakup/habit-tracker/internal/core/ports"
)

// Authenticate resolves a bearer token to a principal and stores it in the
// request context. It never rejects a request: a missing, malformed or
// invalid token, or an unknown or disabled user, simply leaves the request
// unauthenticated for the handlers to deal with. A request that already
// carries a principal is passed through untouched.
//
// The user is looked up on every request, so deleting it revokes its tokens.
func Authenticate(tokens ports.TokenService, users ports.UserRepository, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := req.Context()

			if _, ok := domain.PrincipalFromContext(ctx); ok {
				return next(c)
			}

			raw, ok := bearerToken(req.Header.Get(echo.HeaderAuthorization))
			if !ok {
				return next(c)
			}

			username, err := tokens.Validate(raw)
			if err != nil {
				log.Debug().Err(err).Str("path", c.Path()).Msg("ignoring invalid token")
				return next(c)
			}

			user, err := users.FindByUsername(ctx, username)
			if err != nil {
				if errors.Is(err, domain.ErrUserNotFound) {
					log.Debug().Str("username", username).Msg("token subject no longer exists")
					return next(c)
				}
				return fmt.Errorf("authenticate: %w", err)
			}
			if !user.Credentials().Enabled {
				return next(c)
			}

			c.SetRequest(req.WithContext(domain.ContextWithPrincipal(ctx, user.Principal())))
			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
