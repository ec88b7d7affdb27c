package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

const gatewayKeyHeader = "X-Gateway-Key"

// GatewayKey requires every request to carry the shared gateway key in the
// X-Gateway-Key header, checked against a bcrypt hash from configuration.
// An empty hash disables the check (local development).
func GatewayKey(keyHash string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if keyHash == "" {
				return next(c)
			}

			key := c.Request().Header.Get(gatewayKeyHeader)
			if key == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing gateway key")
			}
			if bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)) != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid gateway key")
			}
			return next(c)
		}
	}
}
