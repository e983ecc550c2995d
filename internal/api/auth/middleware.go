package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/courierchat/internal/identity"
)

const identityContextKey = "courier_identity"

// Middleware returns an echo middleware that requires a valid Bearer token
// and stashes the verified identity on the request context.
func Middleware(verifier *identity.Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			ident, err := verifier.Verify(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(identityContextKey, ident)
			return next(c)
		}
	}
}

// IdentityFrom returns the identity the middleware attached to the request.
func IdentityFrom(c echo.Context) (identity.Identity, bool) {
	ident, ok := c.Get(identityContextKey).(identity.Identity)
	return ident, ok
}
