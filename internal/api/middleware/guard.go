package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/opsdeck/session-gateway/internal/api/metrics"
	"github.com/opsdeck/session-gateway/internal/core/domain"
	"github.com/opsdeck/session-gateway/internal/core/service"
)

// Guard protects a route group with the strict role check: the required role
// must hold a session and be the active role. While the session manager is
// still restoring, requests get 503 with a retry hint rather than a verdict.
func Guard(guard *service.Guard, required domain.RoleKey) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			decision := guard.Check(required, c.Request().URL.Path)
			metrics.GuardDecisionsTotal.WithLabelValues(string(decision.State)).Inc()

			switch decision.State {
			case service.StateAuthorized:
				c.Set("role", string(decision.Role))
				return next(c)
			case service.StateLoading:
				c.Response().Header().Set("Retry-After", "1")
				return c.JSON(http.StatusServiceUnavailable, decision)
			case service.StateUnauthenticated:
				return c.JSON(http.StatusUnauthorized, decision)
			default:
				return c.JSON(http.StatusForbidden, decision)
			}
		}
	}
}
