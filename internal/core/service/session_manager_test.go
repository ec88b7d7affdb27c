package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/opsdeck/session-gateway/internal/core/domain"
	"github.com/opsdeck/session-gateway/internal/core/ports"
)

type stubAuthenticator struct {
	loginFn func(ctx context.Context, creds ports.Credentials) (*ports.UpstreamLogin, error)
	calls   int
}

func (s *stubAuthenticator) Login(ctx context.Context, creds ports.Credentials) (*ports.UpstreamLogin, error) {
	s.calls++
	return s.loginFn(ctx, creds)
}

// stubSessionRepo is an in-memory SessionRepository that also counts writes,
// so tests can assert that failed operations touch nothing.
type stubSessionRepo struct {
	slots  domain.Snapshot
	active domain.RoleKey
	writes int

	readErr  error
	writeErr error
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{slots: domain.NewSnapshot()}
}

func (r *stubSessionRepo) ReadAll(context.Context) (domain.Snapshot, domain.RoleKey, error) {
	if r.readErr != nil {
		return nil, "", r.readErr
	}
	return r.slots.Clone(), r.active, nil
}

func (r *stubSessionRepo) Write(_ context.Context, role domain.RoleKey, rec domain.SessionRecord) error {
	if r.writeErr != nil {
		return r.writeErr
	}
	r.writes++
	r.slots[role] = rec
	return nil
}

func (r *stubSessionRepo) Erase(_ context.Context, role domain.RoleKey) error {
	r.writes++
	r.slots[role] = domain.EmptyRecord(role)
	return nil
}

func (r *stubSessionRepo) WriteActiveRole(_ context.Context, role domain.RoleKey) error {
	r.active = role
	return nil
}

func (r *stubSessionRepo) ClearAll(context.Context) error {
	r.writes++
	r.slots = domain.NewSnapshot()
	r.active = ""
	return nil
}

func profile(userType string) *domain.Profile {
	return &domain.Profile{ID: "u1", Email: "p@example.com", UserType: userType}
}

func newTestManager(auth *stubAuthenticator, repo *stubSessionRepo) *SessionManager {
	m := NewSessionManager(auth, repo, nil, zerolog.Nop())
	if err := m.Init(context.Background()); err != nil {
		panic(err)
	}
	return m
}

func TestLogin_RequestedRolePrecedence(t *testing.T) {
	// Backend flags the primary profile as EMPLOYEE but the caller asked for
	// trader, and a trader entry exists in roleTokens. The trader session
	// must win, with its own token and profile.
	auth := &stubAuthenticator{loginFn: func(_ context.Context, creds ports.Credentials) (*ports.UpstreamLogin, error) {
		if creds.Role != "trader" {
			t.Fatalf("expected normalized role hint, got %q", creds.Role)
		}
		return &ports.UpstreamLogin{
			Token: "employee-token",
			User:  profile("EMPLOYEE"),
			RoleTokens: map[string]string{
				"TRADER": "trader-token",
			},
			RoleProfiles: map[string]*domain.Profile{
				"TRADER": {ID: "u1", Email: "p@example.com", UserType: "TRADER"},
			},
		}, nil
	}}
	repo := newStubSessionRepo()
	m := newTestManager(auth, repo)

	out, err := m.Login(context.Background(), "p@example.com", "pw", "trader")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if out.Role != domain.RoleTrader {
		t.Fatalf("expected trader, got %q", out.Role)
	}
	if out.Token != "trader-token" {
		t.Fatalf("expected trader's own token, got %q", out.Token)
	}

	active, ok := m.ActiveRole()
	if !ok || active != domain.RoleTrader {
		t.Fatalf("active role should be trader, got %q (%v)", active, ok)
	}

	rec, ok := m.Auth(domain.RoleTrader)
	if !ok || rec.Token != "trader-token" || rec.Profile.UserType != "TRADER" {
		t.Fatalf("trader slot should hold its own token and profile, got %+v", rec)
	}

	// The employee session rides along in its own slot.
	if !m.IsLoggedIn(domain.RoleEmployee) {
		t.Fatalf("employee session from primary token should be stored too")
	}
}

func TestLogin_RequestedRoleRelabelsPrimary(t *testing.T) {
	// Requested role is only listed as available: keep the primary token but
	// label the session with the requested role.
	auth := &stubAuthenticator{loginFn: func(context.Context, ports.Credentials) (*ports.UpstreamLogin, error) {
		return &ports.UpstreamLogin{
			Token:          "tok",
			User:           profile("EMPLOYEE"),
			AvailableRoles: []string{"employee", "client"},
		}, nil
	}}
	m := newTestManager(auth, newStubSessionRepo())

	out, err := m.Login(context.Background(), "p@example.com", "pw", "client")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if out.Role != domain.RoleClient || out.Token != "tok" {
		t.Fatalf("expected relabeled client session on primary token, got %+v", out)
	}
	if active, _ := m.ActiveRole(); active != domain.RoleClient {
		t.Fatalf("active role should be client, got %q", active)
	}
}

func TestLogin_FallsBackToBackendPrimary(t *testing.T) {
	auth := &stubAuthenticator{loginFn: func(context.Context, ports.Credentials) (*ports.UpstreamLogin, error) {
		return &ports.UpstreamLogin{Token: "tok", User: profile("Moderator")}, nil
	}}
	m := newTestManager(auth, newStubSessionRepo())

	out, err := m.Login(context.Background(), "p@example.com", "pw", "")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if out.Role != domain.RoleModerator {
		t.Fatalf("expected moderator from backend primary, got %q", out.Role)
	}
}

func TestLogin_UnknownRequestedRole_NoWrites(t *testing.T) {
	auth := &stubAuthenticator{loginFn: func(context.Context, ports.Credentials) (*ports.UpstreamLogin, error) {
		t.Fatalf("backend must not be called for an unknown role")
		return nil, nil
	}}
	repo := newStubSessionRepo()
	m := newTestManager(auth, repo)

	_, err := m.Login(context.Background(), "p@example.com", "pw", "superuser")
	if !errors.Is(err, domain.ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
	if repo.writes != 0 {
		t.Fatalf("expected no store writes, got %d", repo.writes)
	}
	if auth.calls != 0 {
		t.Fatalf("expected no backend calls, got %d", auth.calls)
	}
}

func TestLogin_RequestedRoleNotHeld_Forbidden(t *testing.T) {
	auth := &stubAuthenticator{loginFn: func(context.Context, ports.Credentials) (*ports.UpstreamLogin, error) {
		return &ports.UpstreamLogin{
			Token:          "tok",
			User:           profile("EMPLOYEE"),
			AvailableRoles: []string{"employee"},
		}, nil
	}}
	repo := newStubSessionRepo()
	m := newTestManager(auth, repo)

	_, err := m.Login(context.Background(), "p@example.com", "pw", "admin")
	if !errors.Is(err, domain.ErrRoleForbidden) {
		t.Fatalf("expected ErrRoleForbidden, got %v", err)
	}
	if repo.writes != 0 {
		t.Fatalf("failed login must not write any slot, got %d writes", repo.writes)
	}
}

func TestLogin_SecondLoginDoesNotTouchFirst(t *testing.T) {
	// Log in as trader, then as client. Trader must still be logged in and
	// keep its exact token.
	auth := &stubAuthenticator{loginFn: func(_ context.Context, creds ports.Credentials) (*ports.UpstreamLogin, error) {
		switch creds.Role {
		case "trader":
			return &ports.UpstreamLogin{Token: "trader-token", User: profile("TRADER")}, nil
		default:
			return &ports.UpstreamLogin{Token: "client-token", User: profile("USER")}, nil
		}
	}}
	m := newTestManager(auth, newStubSessionRepo())

	if _, err := m.Login(context.Background(), "p@example.com", "pw", "trader"); err != nil {
		t.Fatalf("trader login failed: %v", err)
	}
	if _, err := m.Login(context.Background(), "p@example.com", "pw", ""); err != nil {
		t.Fatalf("client login failed: %v", err)
	}

	if !m.IsLoggedIn(domain.RoleTrader) {
		t.Fatalf("trader session must survive a client login")
	}
	rec, _ := m.Auth(domain.RoleTrader)
	if rec.Token != "trader-token" {
		t.Fatalf("trader token changed: %q", rec.Token)
	}
	if active, _ := m.ActiveRole(); active != domain.RoleClient {
		t.Fatalf("active role should follow the latest login, got %q", active)
	}
}

func TestLogin_MalformedResponse(t *testing.T) {
	auth := &stubAuthenticator{loginFn: func(context.Context, ports.Credentials) (*ports.UpstreamLogin, error) {
		return &ports.UpstreamLogin{Token: "", User: profile("ADMIN")}, nil
	}}
	m := newTestManager(auth, newStubSessionRepo())

	if _, err := m.Login(context.Background(), "p@example.com", "pw", ""); !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestLogin_BackendFailureLeavesOtherSessions(t *testing.T) {
	calls := 0
	auth := &stubAuthenticator{loginFn: func(context.Context, ports.Credentials) (*ports.UpstreamLogin, error) {
		calls++
		if calls == 1 {
			return &ports.UpstreamLogin{Token: "tok", User: profile("ADMIN")}, nil
		}
		return nil, domain.NewLoginError(domain.ErrInvalidCredentials, "nope")
	}}
	m := newTestManager(auth, newStubSessionRepo())

	if _, err := m.Login(context.Background(), "p@example.com", "pw", ""); err != nil {
		t.Fatalf("first login failed: %v", err)
	}
	if _, err := m.Login(context.Background(), "p@example.com", "bad", "client"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	if !m.IsLoggedIn(domain.RoleAdmin) {
		t.Fatalf("admin session must survive a failed client login")
	}
	if active, _ := m.ActiveRole(); active != domain.RoleAdmin {
		t.Fatalf("active role must be untouched by the failed login, got %q", active)
	}
}

func TestLogout_ActiveRoleClearsWithoutFallback(t *testing.T) {
	auth := &stubAuthenticator{loginFn: func(context.Context, ports.Credentials) (*ports.UpstreamLogin, error) {
		return &ports.UpstreamLogin{
			Token: "tok",
			User:  profile("EMPLOYEE"),
			RoleTokens: map[string]string{
				"employee": "employee-token",
				"admin":    "admin-token",
			},
		}, nil
	}}
	m := newTestManager(auth, newStubSessionRepo())

	if _, err := m.Login(context.Background(), "p@example.com", "pw", "employee"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !m.IsLoggedIn(domain.RoleAdmin) {
		t.Fatalf("admin session should be stored from roleTokens")
	}

	if err := m.Logout(context.Background(), domain.RoleEmployee); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	if _, ok := m.ActiveRole(); ok {
		t.Fatalf("active role must clear when the active session logs out, not fall back")
	}
	if !m.IsLoggedIn(domain.RoleAdmin) {
		t.Fatalf("admin session must survive employee logout")
	}
	if m.IsLoggedIn(domain.RoleEmployee) {
		t.Fatalf("employee session should be gone")
	}
}

func TestLogoutAll_Idempotent(t *testing.T) {
	auth := &stubAuthenticator{loginFn: func(context.Context, ports.Credentials) (*ports.UpstreamLogin, error) {
		return &ports.UpstreamLogin{Token: "tok", User: profile("ADMIN")}, nil
	}}
	repo := newStubSessionRepo()
	m := newTestManager(auth, repo)

	if _, err := m.Login(context.Background(), "p@example.com", "pw", ""); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := m.LogoutAll(context.Background()); err != nil {
			t.Fatalf("logout-all #%d failed: %v", i+1, err)
		}
		if roles := m.ActiveRoles(); len(roles) != 0 {
			t.Fatalf("logout-all #%d left sessions: %v", i+1, roles)
		}
		if _, ok := m.ActiveRole(); ok {
			t.Fatalf("logout-all #%d left an active role", i+1)
		}
		if repo.active != "" {
			t.Fatalf("persisted active role not cleared")
		}
	}
}

func TestActiveToken_PriorityOrder(t *testing.T) {
	auth := &stubAuthenticator{loginFn: func(context.Context, ports.Credentials) (*ports.UpstreamLogin, error) {
		return &ports.UpstreamLogin{
			Token: "tok",
			User:  profile("TRADER"),
			RoleTokens: map[string]string{
				"trader":   "trader-token",
				"employee": "employee-token",
			},
		}, nil
	}}
	m := newTestManager(auth, newStubSessionRepo())

	if _, err := m.Login(context.Background(), "p@example.com", "pw", "trader"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	// No preference: employee outranks trader in the fixed order, regardless
	// of trader being active.
	token, ok := m.ActiveToken("")
	if !ok || token != "employee-token" {
		t.Fatalf("expected employee-token by priority, got %q (%v)", token, ok)
	}

	token, ok = m.ActiveToken(domain.RoleTrader)
	if !ok || token != "trader-token" {
		t.Fatalf("expected trader-token for explicit preference, got %q (%v)", token, ok)
	}

	if _, ok := m.ActiveToken(domain.RoleAdmin); ok {
		t.Fatalf("admin has no session, expected no token")
	}
}

func TestSwitchRole(t *testing.T) {
	auth := &stubAuthenticator{loginFn: func(context.Context, ports.Credentials) (*ports.UpstreamLogin, error) {
		return &ports.UpstreamLogin{
			Token:      "tok",
			User:       profile("EMPLOYEE"),
			RoleTokens: map[string]string{"employee": "e", "admin": "a"},
		}, nil
	}}
	m := newTestManager(auth, newStubSessionRepo())

	if _, err := m.Login(context.Background(), "p@example.com", "pw", "employee"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	active, err := m.SwitchRole(context.Background(), domain.RoleAdmin)
	if err != nil || active != domain.RoleAdmin {
		t.Fatalf("switch to admin failed: %v (%q)", err, active)
	}

	if _, err := m.SwitchRole(context.Background(), domain.RoleTrader); !errors.Is(err, domain.ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn for trader, got %v", err)
	}
}

func TestInit_RestoresPersistedSessions(t *testing.T) {
	repo := newStubSessionRepo()
	repo.slots[domain.RoleAdmin] = domain.SessionRecord{Role: domain.RoleAdmin, Token: "t", Profile: profile("ADMIN")}
	repo.active = domain.RoleAdmin

	m := NewSessionManager(&stubAuthenticator{}, repo, nil, zerolog.Nop())
	if m.Ready() {
		t.Fatalf("manager must not be ready before Init")
	}
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	if !m.Ready() {
		t.Fatalf("manager should be ready after Init")
	}
	if !m.IsLoggedIn(domain.RoleAdmin) {
		t.Fatalf("admin session should be restored")
	}
	if active, _ := m.ActiveRole(); active != domain.RoleAdmin {
		t.Fatalf("active role should be restored, got %q", active)
	}
}

func TestInit_DiscardsActiveRoleWithoutSession(t *testing.T) {
	repo := newStubSessionRepo()
	repo.active = domain.RoleTrader // no trader slot

	m := NewSessionManager(&stubAuthenticator{}, repo, nil, zerolog.Nop())
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if _, ok := m.ActiveRole(); ok {
		t.Fatalf("active role pointing at an empty slot must be discarded")
	}
}

func TestInit_ReadFailureStartsEmpty(t *testing.T) {
	repo := newStubSessionRepo()
	repo.readErr = errors.New("store down")

	m := NewSessionManager(&stubAuthenticator{}, repo, nil, zerolog.Nop())
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("init should swallow read failures, got %v", err)
	}
	if !m.Ready() {
		t.Fatalf("manager should still become ready")
	}
	if roles := m.ActiveRoles(); len(roles) != 0 {
		t.Fatalf("expected empty store after failed restore, got %v", roles)
	}
}
