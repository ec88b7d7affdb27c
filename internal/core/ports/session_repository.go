package ports

import (
	"context"

	"github.com/opsdeck/session-gateway/internal/core/domain"
)

// SessionRepository persists one session slot per role plus the active role
// marker. Each role's slot is independently addressable: writing one slot
// must never touch another. A read that finds half a slot (token without
// profile or the reverse) reports that slot as empty.
type SessionRepository interface {
	// ReadAll loads every role's slot and the persisted active role. The
	// returned snapshot always contains all roles; active is "" when none is
	// persisted or the persisted value is unusable.
	ReadAll(ctx context.Context) (domain.Snapshot, domain.RoleKey, error)

	// Write stores one role's record, overwriting any previous slot content.
	Write(ctx context.Context, role domain.RoleKey, rec domain.SessionRecord) error

	// Erase empties one role's slot.
	Erase(ctx context.Context, role domain.RoleKey) error

	// WriteActiveRole persists the active role marker; "" clears it.
	WriteActiveRole(ctx context.Context, role domain.RoleKey) error

	// ClearAll erases every slot and the active role marker in one shot.
	ClearAll(ctx context.Context) error
}
