package service

import (
	"testing"

	"github.com/opsdeck/session-gateway/internal/core/domain"
)

// stubGuardSource fakes the session-manager state the guard reads.
type stubGuardSource struct {
	ready  bool
	active domain.RoleKey
	live   []domain.RoleKey
}

func (s *stubGuardSource) Ready() bool { return s.ready }

func (s *stubGuardSource) ActiveRole() (domain.RoleKey, bool) {
	return s.active, s.active != ""
}

func (s *stubGuardSource) ActiveRoles() []domain.RoleKey { return s.live }

func (s *stubGuardSource) IsLoggedIn(role domain.RoleKey) bool {
	for _, r := range s.live {
		if r == role {
			return true
		}
	}
	return false
}

func TestGuard_LoadingBeforeAnything(t *testing.T) {
	// Even with sessions present, a not-yet-restored store must never yield
	// a verdict; deciding early is exactly the premature-redirect bug.
	src := &stubGuardSource{ready: false, active: domain.RoleAdmin, live: []domain.RoleKey{domain.RoleAdmin}}
	g := NewGuard(src)

	d := g.Check(domain.RoleAdmin, "/admin/users")
	if d.State != StateLoading {
		t.Fatalf("expected loading, got %q", d.State)
	}
	if d.RedirectTo != "" {
		t.Fatalf("loading must not redirect, got %q", d.RedirectTo)
	}
}

func TestGuard_UnauthenticatedPreservesPath(t *testing.T) {
	g := NewGuard(&stubGuardSource{ready: true})

	d := g.Check(domain.RoleAdmin, "/admin/users")
	if d.State != StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %q", d.State)
	}
	if d.RedirectTo != "/login?next=%2Fadmin%2Fusers" {
		t.Fatalf("redirect should carry the requested path, got %q", d.RedirectTo)
	}
}

func TestGuard_Authorized(t *testing.T) {
	src := &stubGuardSource{ready: true, active: domain.RoleAdmin, live: []domain.RoleKey{domain.RoleAdmin}}
	g := NewGuard(src)

	d := g.Check(domain.RoleAdmin, "/admin")
	if d.State != StateAuthorized || d.Role != domain.RoleAdmin {
		t.Fatalf("expected authorized admin, got %+v", d)
	}
}

func TestGuard_StrictRoleDenial(t *testing.T) {
	// Sessions exist for both employee and admin, but employee is active: an
	// admin-only navigation must be denied despite the stored admin token.
	src := &stubGuardSource{
		ready:  true,
		active: domain.RoleEmployee,
		live:   []domain.RoleKey{domain.RoleAdmin, domain.RoleEmployee},
	}
	g := NewGuard(src)

	d := g.Check(domain.RoleAdmin, "/admin")
	if d.State != StateDenied {
		t.Fatalf("expected denied, got %q", d.State)
	}
	if d.Role != domain.RoleEmployee || d.Required != domain.RoleAdmin {
		t.Fatalf("decision should carry active and required roles, got %+v", d)
	}
	if d.RedirectTo != "/employee" {
		t.Fatalf("denied should prefer the active role's dashboard, got %q", d.RedirectTo)
	}
}

func TestGuard_DeniedRedirectFallsBackByPriority(t *testing.T) {
	// No active role: fall back to the first live role (in priority order)
	// that has a dashboard. Vendor has none, so trader wins here.
	src := &stubGuardSource{
		ready: true,
		live:  []domain.RoleKey{domain.RoleVendor, domain.RoleTrader},
	}
	g := NewGuard(src)

	d := g.Check(domain.RoleAdmin, "/admin")
	if d.State != StateDenied {
		t.Fatalf("expected denied, got %q", d.State)
	}
	if d.RedirectTo != "/trader" {
		t.Fatalf("expected trader dashboard fallback, got %q", d.RedirectTo)
	}
}

func TestGuard_RepeatedEvaluationIsStable(t *testing.T) {
	src := &stubGuardSource{
		ready:  true,
		active: domain.RoleClient,
		live:   []domain.RoleKey{domain.RoleClient},
	}
	g := NewGuard(src)

	first := g.Check(domain.RoleAdmin, "/admin")
	for i := 0; i < 5; i++ {
		if got := g.Check(domain.RoleAdmin, "/admin"); got != first {
			t.Fatalf("evaluation %d differed: %+v vs %+v", i, got, first)
		}
	}
}
