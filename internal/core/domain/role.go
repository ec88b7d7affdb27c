package domain

import "strings"

// RoleKey identifies one of the canonical roles a person can hold a session
// for. The set is closed; values are lower-case singular.
type RoleKey string

const (
	RoleAdmin     RoleKey = "admin"
	RoleModerator RoleKey = "moderator"
	RoleEmployee  RoleKey = "employee"
	RoleVendor    RoleKey = "vendor"
	RoleTrader    RoleKey = "trader"
	RoleClient    RoleKey = "client"
)

// RolePriority is the fixed order used wherever a "first logged-in role" has
// to be picked deterministically (token lookup, role listings, dashboard
// fallback). Keep it an explicit list, not a chain of conditionals.
var RolePriority = []RoleKey{
	RoleAdmin,
	RoleModerator,
	RoleEmployee,
	RoleVendor,
	RoleTrader,
	RoleClient,
}

// dashboardPaths maps each role to its console landing path. Vendor accounts
// have no standalone dashboard; they operate through the trader console.
var dashboardPaths = map[RoleKey]string{
	RoleAdmin:     "/admin",
	RoleModerator: "/moderator",
	RoleEmployee:  "/employee",
	RoleTrader:    "/trader",
	RoleClient:    "/client",
}

// NormalizeRole maps an arbitrary-case backend role string to its canonical
// RoleKey. The backend alias "USER" means client. An unrecognized string
// yields ok=false; that is a valid answer, not an error, and callers must not
// substitute a default role for it.
func NormalizeRole(s string) (RoleKey, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, true
	case "moderator":
		return RoleModerator, true
	case "employee":
		return RoleEmployee, true
	case "vendor":
		return RoleVendor, true
	case "trader":
		return RoleTrader, true
	case "client", "user":
		return RoleClient, true
	}
	return "", false
}

// Valid reports whether r is one of the six canonical role keys.
func (r RoleKey) Valid() bool {
	for _, p := range RolePriority {
		if p == r {
			return true
		}
	}
	return false
}

// DashboardPath returns the console landing path for r, or "" when the role
// has no dashboard of its own.
func (r RoleKey) DashboardPath() string {
	return dashboardPaths[r]
}
