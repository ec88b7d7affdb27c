package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/opsdeck/session-gateway/internal/api/metrics"
	"github.com/opsdeck/session-gateway/internal/core/domain"
	"github.com/opsdeck/session-gateway/internal/core/ports"
)

// SessionHandler exposes the session manager over HTTP.
type SessionHandler struct {
	sessions ports.SessionService
}

func NewSessionHandler(sessions ports.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role,omitempty"`
}

type logoutRequest struct {
	Role string `json:"role,omitempty"`
}

type switchRequest struct {
	Role string `json:"role" validate:"required"`
}

type switchResponse struct {
	ActiveRole domain.RoleKey `json:"active_role"`
}

type roleSummary struct {
	Role        domain.RoleKey  `json:"role"`
	LoggedIn    bool            `json:"logged_in"`
	Profile     *domain.Profile `json:"profile,omitempty"`
	LastUpdated *time.Time      `json:"last_updated,omitempty"`
}

type sessionsResponse struct {
	ActiveRole  domain.RoleKey   `json:"active_role,omitempty"`
	ActiveRoles []domain.RoleKey `json:"active_roles"`
	Roles       []roleSummary    `json:"roles"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Login authenticates against the backend and distributes role sessions.
//
// @Summary      Log in, optionally as a specific role
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials and optional requested role"
// @Success      200   {object}  domain.LoginOutcome
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /session/login [post]
func (h *SessionHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	start := time.Now()
	outcome, err := h.sessions.Login(c.Request().Context(), req.Email, req.Password, req.Role)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("none", loginOutcomeLabel(err)).Inc()
		metrics.LoginDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return err
	}

	metrics.LoginsTotal.WithLabelValues(string(outcome.Role), "success").Inc()
	metrics.LoginDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())
	metrics.ActiveSessions.Set(float64(len(h.sessions.ActiveRoles())))

	return c.JSON(http.StatusOK, outcome)
}

// Logout erases one role's session, or every session when no role is given.
//
// @Summary      Log out of one role or all roles
// @Tags         session
// @Accept       json
// @Param        body  body  logoutRequest  false  "Role to log out; omit for logout-all"
// @Success      204
// @Failure      400   {object}  map[string]string
// @Router       /session/logout [post]
func (h *SessionHandler) Logout(c echo.Context) error {
	var req logoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	ctx := c.Request().Context()
	if req.Role == "" {
		if err := h.sessions.LogoutAll(ctx); err != nil {
			return err
		}
		metrics.LogoutsTotal.WithLabelValues("all").Inc()
	} else {
		role, ok := domain.NormalizeRole(req.Role)
		if !ok {
			return domain.NewLoginError(domain.ErrUnknownRole, "role %q is not recognized", req.Role)
		}
		if err := h.sessions.Logout(ctx, role); err != nil {
			return err
		}
		metrics.LogoutsTotal.WithLabelValues("role").Inc()
	}

	metrics.ActiveSessions.Set(float64(len(h.sessions.ActiveRoles())))
	return c.NoContent(http.StatusNoContent)
}

// Switch makes an already-logged-in role the active one.
//
// @Summary      Switch the active role
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      switchRequest  true  "Role to activate"
// @Success      200   {object}  switchResponse
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /session/switch [post]
func (h *SessionHandler) Switch(c echo.Context) error {
	var req switchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	role, ok := domain.NormalizeRole(req.Role)
	if !ok {
		return domain.NewLoginError(domain.ErrUnknownRole, "role %q is not recognized", req.Role)
	}

	active, err := h.sessions.SwitchRole(c.Request().Context(), role)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, switchResponse{ActiveRole: active})
}

// Sessions reports the active role and every role's session state.
//
// @Summary      Current session state across all roles
// @Tags         session
// @Produce      json
// @Success      200  {object}  sessionsResponse
// @Router       /session [get]
func (h *SessionHandler) Sessions(c echo.Context) error {
	resp := sessionsResponse{
		ActiveRoles: h.sessions.ActiveRoles(),
		Roles:       make([]roleSummary, 0, len(domain.RolePriority)),
	}
	if active, ok := h.sessions.ActiveRole(); ok {
		resp.ActiveRole = active
	}
	for _, role := range domain.RolePriority {
		summary := roleSummary{Role: role}
		if rec, ok := h.sessions.Auth(role); ok {
			summary.LoggedIn = true
			summary.Profile = rec.Profile
			if !rec.LastUpdated.IsZero() {
				t := rec.LastUpdated
				summary.LastUpdated = &t
			}
		}
		resp.Roles = append(resp.Roles, summary)
	}
	return c.JSON(http.StatusOK, resp)
}

// Token returns a token for API collaborators: the given role's token, or the
// first live session's in priority order when no role is specified.
//
// @Summary      Look up a session token
// @Tags         session
// @Produce      json
// @Param        role  query     string  false  "Preferred role"
// @Success      200   {object}  tokenResponse
// @Failure      404   {object}  map[string]string
// @Router       /session/token [get]
func (h *SessionHandler) Token(c echo.Context) error {
	var preferred domain.RoleKey
	if raw := c.QueryParam("role"); raw != "" {
		role, ok := domain.NormalizeRole(raw)
		if !ok {
			return domain.NewLoginError(domain.ErrUnknownRole, "role %q is not recognized", raw)
		}
		preferred = role
	}

	token, ok := h.sessions.ActiveToken(preferred)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no session token available")
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: token})
}

// loginOutcomeLabel condenses a login error into a metric label value.
func loginOutcomeLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrRoleForbidden):
		return "role_forbidden"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrUnknownRole):
		return "unknown_role"
	case errors.Is(err, domain.ErrUpstreamServer):
		return "upstream_error"
	case errors.Is(err, domain.ErrUpstreamUnreachable):
		return "network_error"
	case errors.Is(err, domain.ErrMalformedResponse):
		return "malformed_response"
	}
	return "error"
}
