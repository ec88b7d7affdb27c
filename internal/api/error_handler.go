package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/opsdeck/session-gateway/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps the login failure taxonomy to deterministic HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "...", "kind": "..."}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var le *domain.LoginError
		if errors.As(err, &le) && le.RetryAfter > 0 {
			c.Response().Header().Set("Retry-After", strconv.Itoa(int(le.RetryAfter.Seconds())))
		}

		code, kind, msg := resolveError(err, log, c)
		_ = c.JSON(code, errorResponse{Error: msg, Kind: kind})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, "", fmt.Sprintf("%v", he.Message)
	}

	// Known domain errors → deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "invalid credentials"
	case errors.Is(err, domain.ErrRoleForbidden):
		return http.StatusForbidden, "role_forbidden", err.Error()
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited", "too many login attempts"
	case errors.Is(err, domain.ErrUnknownRole):
		return http.StatusBadRequest, "unknown_role", err.Error()
	case errors.Is(err, domain.ErrNotLoggedIn):
		return http.StatusConflict, "not_logged_in", err.Error()
	case errors.Is(err, domain.ErrMalformedResponse):
		return http.StatusBadGateway, "malformed_response", "authentication backend sent an unusable response"
	case errors.Is(err, domain.ErrUpstreamServer):
		return http.StatusBadGateway, "upstream_error", "authentication backend error"
	case errors.Is(err, domain.ErrUpstreamUnreachable):
		return http.StatusGatewayTimeout, "network_error", "authentication backend unreachable"
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "", "internal server error"
}
