package ports

import (
	"context"
	"time"

	"github.com/opsdeck/session-gateway/internal/core/domain"
)

// AuditEntry records one session lifecycle event for the console's login
// history screen.
type AuditEntry struct {
	Event   string         `json:"event"` // "login", "logout", "logout_all", "switch"
	Role    domain.RoleKey `json:"role,omitempty"`
	Email   string         `json:"email,omitempty"`
	Outcome string         `json:"outcome"` // "success" or the failure kind
	At      time.Time      `json:"at"`
}

// AuditRepository stores the session audit trail. Recording is best-effort;
// callers never fail an operation on audit errors.
type AuditRepository interface {
	Record(ctx context.Context, entry AuditEntry) error
	Recent(ctx context.Context, limit int) ([]AuditEntry, error)
}
