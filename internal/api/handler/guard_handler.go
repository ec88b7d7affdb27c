package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/opsdeck/session-gateway/internal/api/metrics"
	"github.com/opsdeck/session-gateway/internal/core/domain"
	"github.com/opsdeck/session-gateway/internal/core/service"
)

// GuardHandler exposes route-guard decisions so the dashboard can gate
// navigations without duplicating the state machine client-side.
type GuardHandler struct {
	guard *service.Guard
}

func NewGuardHandler(guard *service.Guard) *GuardHandler {
	return &GuardHandler{guard: guard}
}

// Check evaluates a navigation requiring a role.
//
// @Summary      Evaluate the route guard for a navigation
// @Tags         guard
// @Produce      json
// @Param        role  query     string  true   "Role the navigation requires"
// @Param        path  query     string  false  "Originally requested path"
// @Success      200   {object}  service.Decision
// @Failure      400   {object}  map[string]string
// @Router       /guard/check [get]
func (h *GuardHandler) Check(c echo.Context) error {
	raw := c.QueryParam("role")
	required, ok := domain.NormalizeRole(raw)
	if !ok {
		return domain.NewLoginError(domain.ErrUnknownRole, "role %q is not recognized", raw)
	}

	decision := h.guard.Check(required, c.QueryParam("path"))
	metrics.GuardDecisionsTotal.WithLabelValues(string(decision.State)).Inc()
	return c.JSON(http.StatusOK, decision)
}
