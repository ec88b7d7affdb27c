package service

import (
	"net/url"

	"github.com/opsdeck/session-gateway/internal/core/domain"
)

// GuardState is the outcome class of one guard evaluation.
type GuardState string

const (
	// StateLoading means persisted sessions are still being restored; no
	// authorization verdict may be produced yet.
	StateLoading GuardState = "loading"
	// StateUnauthenticated means no role holds any session.
	StateUnauthenticated GuardState = "unauthenticated"
	// StateAuthorized means the required role has a session and is active.
	StateAuthorized GuardState = "authorized"
	// StateDenied means some session exists but the strict check failed.
	StateDenied GuardState = "denied"
)

// Decision is one guard verdict. RedirectTo is populated for the two failure
// states: the login page (carrying the originally requested path) when
// unauthenticated, or the best-matching dashboard when denied.
type Decision struct {
	State      GuardState     `json:"state"`
	Role       domain.RoleKey `json:"role,omitempty"`     // active role at evaluation time
	Required   domain.RoleKey `json:"required,omitempty"` // role the navigation demanded
	RedirectTo string         `json:"redirect_to,omitempty"`
}

// GuardSource is the slice of session-manager state the guard reads.
type GuardSource interface {
	Ready() bool
	ActiveRole() (domain.RoleKey, bool)
	ActiveRoles() []domain.RoleKey
	IsLoggedIn(role domain.RoleKey) bool
}

// Guard decides whether a navigation requiring a given role may proceed. It
// is stateless and side-effect free; evaluating the same navigation twice
// yields the same decision.
type Guard struct {
	src GuardSource
}

func NewGuard(src GuardSource) *Guard {
	return &Guard{src: src}
}

// Check evaluates a navigation to path that requires required.
//
// The loading check runs before anything else: deciding against a store that
// has not been restored yet would redirect users who are in fact logged in.
// After that, authorization is strict: the required role must both hold a
// session and be the active role. A stored token for the required role is not
// enough while a different role is active.
func (g *Guard) Check(required domain.RoleKey, path string) Decision {
	if !g.src.Ready() {
		return Decision{State: StateLoading, Required: required}
	}

	live := g.src.ActiveRoles()
	if len(live) == 0 {
		return Decision{
			State:      StateUnauthenticated,
			Required:   required,
			RedirectTo: loginRedirect(path),
		}
	}

	active, hasActive := g.src.ActiveRole()
	if hasActive && active == required && g.src.IsLoggedIn(required) {
		return Decision{State: StateAuthorized, Role: required, Required: required}
	}

	return Decision{
		State:      StateDenied,
		Role:       active,
		Required:   required,
		RedirectTo: g.deniedRedirect(active, live),
	}
}

// deniedRedirect picks where to send a user who is logged in but not
// authorized: the active role's dashboard when it resolves to one, else the
// first live role in priority order with a dashboard, else the login page.
func (g *Guard) deniedRedirect(active domain.RoleKey, live []domain.RoleKey) string {
	if p := active.DashboardPath(); p != "" {
		return p
	}
	for _, role := range live {
		if p := role.DashboardPath(); p != "" {
			return p
		}
	}
	return "/login"
}

func loginRedirect(path string) string {
	if path == "" {
		return "/login"
	}
	return "/login?next=" + url.QueryEscape(path)
}
