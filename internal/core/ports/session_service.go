package ports

import (
	"context"

	"github.com/opsdeck/session-gateway/internal/core/domain"
)

// SessionService is the session manager's surface as seen by the transport
// layer. Mutating operations are serialized by the implementation; queries
// are cheap and safe to call at any rate.
type SessionService interface {
	// Login authenticates against the backend and distributes the resulting
	// role sessions. requestedRole may be "" (backend picks the primary) or
	// any string the caller got from the UI; it is normalized here, and an
	// unrecognized value fails with ErrUnknownRole before any network call.
	Login(ctx context.Context, email, password, requestedRole string) (*domain.LoginOutcome, error)

	// Logout erases one role's session. If that role was active, the active
	// role becomes unset; it never falls back to another logged-in role.
	Logout(ctx context.Context, role domain.RoleKey) error

	// LogoutAll erases every session and the active role. Idempotent.
	LogoutAll(ctx context.Context) error

	// SwitchRole makes an already-logged-in role the active one.
	SwitchRole(ctx context.Context, role domain.RoleKey) (domain.RoleKey, error)

	// ActiveRole returns the role the console currently operates as.
	ActiveRole() (domain.RoleKey, bool)

	// ActiveRoles lists roles with a live session, in RolePriority order.
	ActiveRoles() []domain.RoleKey

	// IsLoggedIn reports whether role has a live session.
	IsLoggedIn(role domain.RoleKey) bool

	// ActiveToken returns preferred's token when preferred is non-empty, else
	// the first live session's token in RolePriority order. It does not
	// consult the active role.
	ActiveToken(preferred domain.RoleKey) (string, bool)

	// Auth returns the full session record for one role.
	Auth(role domain.RoleKey) (domain.SessionRecord, bool)

	// Ready reports whether the one-time restore from persistence finished.
	Ready() bool
}
