package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/opsdeck/session-gateway/internal/core/ports"
)

// AuditHandler serves the login history screen.
type AuditHandler struct {
	audit ports.AuditRepository
}

func NewAuditHandler(audit ports.AuditRepository) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// Recent lists the most recent session audit entries.
//
// @Summary      Recent session audit entries
// @Tags         audit
// @Produce      json
// @Param        limit  query     int  false  "Maximum entries to return (default 50)"
// @Success      200    {array}   ports.AuditEntry
// @Failure      500    {object}  map[string]string
// @Router       /audit [get]
func (h *AuditHandler) Recent(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	entries, err := h.audit.Recent(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []ports.AuditEntry{}
	}
	return c.JSON(http.StatusOK, entries)
}
