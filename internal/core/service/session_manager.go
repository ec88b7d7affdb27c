package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/opsdeck/session-gateway/internal/core/domain"
	"github.com/opsdeck/session-gateway/internal/core/ports"
)

// SessionManager owns the per-role session slots and the single active role.
// It is the only component that mutates them. One instance is constructed per
// process; Init restores persisted sessions, after which Ready reports true
// and the guard may leave its loading state.
//
// All mutating operations hold mu for their full duration, including the
// network call inside Login, so two in-flight operations can never interleave
// their writes. The in-memory snapshot is authoritative for the life of the
// process; persistence writes are best-effort and only logged on failure,
// mirroring how little a durable key-value store is expected to fail.
type SessionManager struct {
	auth  ports.Authenticator
	repo  ports.SessionRepository
	audit ports.AuditRepository
	log   zerolog.Logger

	mu       sync.Mutex
	sessions domain.Snapshot
	active   domain.RoleKey
	ready    bool
}

var _ ports.SessionService = (*SessionManager)(nil)

// NewSessionManager wires a manager. audit may be nil when no trail is wanted.
func NewSessionManager(auth ports.Authenticator, repo ports.SessionRepository, audit ports.AuditRepository, log zerolog.Logger) *SessionManager {
	return &SessionManager{
		auth:     auth,
		repo:     repo,
		audit:    audit,
		log:      log,
		sessions: domain.NewSnapshot(),
	}
}

// Init performs the one-time restore from persistence. A failed read leaves
// every slot empty rather than blocking startup; the error is logged and the
// manager still becomes ready.
func (m *SessionManager) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, active, err := m.repo.ReadAll(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("session restore failed, starting empty")
		snap, active = domain.NewSnapshot(), ""
	}
	m.sessions = snap

	// A persisted active role pointing at an empty slot would violate the
	// active-role invariant; discard it.
	if active != "" && m.sessions[active].Empty() {
		m.log.Warn().Str("role", string(active)).Msg("persisted active role has no session, discarding")
		active = ""
	}
	m.active = active
	m.ready = true

	m.log.Info().
		Int("restored", len(m.activeRolesLocked())).
		Str("active_role", string(active)).
		Msg("session manager ready")
	return nil
}

// Ready reports whether Init has completed.
func (m *SessionManager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// Login implements the resolution contract:
//  1. an unknown requestedRole fails before any network or store traffic;
//  2. a requestedRole with its own entry in roleTokens/roleProfiles wins the
//     primary slot with that entry's token and profile;
//  3. a requestedRole merely listed as available keeps the primary token but
//     relabels the session to the requested role;
//  4. a requestedRole the account does not hold at all is ErrRoleForbidden;
//  5. otherwise the backend's own primary role is used.
//
// Every additional role the response carries gets its own slot, so one call
// may populate several slots. The active role is the requested role when one
// was given, never the backend's idea of primary. A failed login leaves
// previously stored roles untouched.
func (m *SessionManager) Login(ctx context.Context, email, password, requestedRole string) (*domain.LoginOutcome, error) {
	var want domain.RoleKey
	if strings.TrimSpace(requestedRole) != "" {
		r, ok := domain.NormalizeRole(requestedRole)
		if !ok {
			return nil, domain.NewLoginError(domain.ErrUnknownRole, "role %q is not recognized", requestedRole)
		}
		want = r
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	up, err := m.auth.Login(ctx, ports.Credentials{Email: email, Password: password, Role: string(want)})
	if err != nil {
		m.recordAudit(ctx, "login", want, email, failureKind(err))
		return nil, err
	}
	if up == nil || up.Token == "" || up.User == nil {
		m.recordAudit(ctx, "login", want, email, "malformed_response")
		return nil, domain.NewLoginError(domain.ErrMalformedResponse, "backend response is missing token or user")
	}

	primary, ok := m.resolvePrimaryRole(up)
	if want == "" && !ok {
		m.recordAudit(ctx, "login", want, email, "malformed_response")
		return nil, domain.NewLoginError(domain.ErrMalformedResponse, "backend response carries no resolvable role")
	}

	role, token, profile := primary, up.Token, up.User
	if want != "" {
		switch {
		case roleTokenEntry(up, want) != "":
			role, token = want, roleTokenEntry(up, want)
			if p := roleProfileEntry(up, want); p != nil {
				profile = p
			}
		case want == primary, listsRole(up.AvailableRoles, want):
			// No distinct token: keep the primary token, relabel the session.
			role = want
		default:
			m.recordAudit(ctx, "login", want, email, "role_forbidden")
			return nil, domain.NewLoginError(domain.ErrRoleForbidden, "account does not hold role %q", want)
		}
	}

	now := time.Now().UTC()
	m.storeRecord(ctx, domain.SessionRecord{Role: role, Token: token, Profile: profile, LastUpdated: now})
	m.storeSecondaryRoles(ctx, up, role, now)

	// The backend's own primary session rides along when a requested role won
	// the slot, unless the fan-out already stored a dedicated one for it.
	if ok && primary != role && m.sessions[primary].Empty() {
		m.storeRecord(ctx, domain.SessionRecord{Role: primary, Token: up.Token, Profile: up.User, LastUpdated: now})
	}

	// Slots are written before the active role so no reader ever observes an
	// active role without its record.
	m.active = role
	if err := m.repo.WriteActiveRole(ctx, role); err != nil {
		m.log.Warn().Err(err).Str("role", string(role)).Msg("failed to persist active role")
	}

	m.recordAudit(ctx, "login", role, email, "success")
	m.log.Info().
		Str("role", string(role)).
		Str("email", email).
		Strs("available_roles", roleStrings(m.activeRolesLocked())).
		Msg("login resolved")

	return &domain.LoginOutcome{
		Role:           role,
		Token:          token,
		Profile:        profile,
		AvailableRoles: m.activeRolesLocked(),
	}, nil
}

// Logout erases one role's session. Logging out the active role clears the
// active role; it never silently falls back to another session.
func (m *SessionManager) Logout(ctx context.Context, role domain.RoleKey) error {
	if !role.Valid() {
		return domain.NewLoginError(domain.ErrUnknownRole, "role %q is not recognized", role)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[role] = domain.EmptyRecord(role)
	if err := m.repo.Erase(ctx, role); err != nil {
		m.log.Warn().Err(err).Str("role", string(role)).Msg("failed to erase session slot")
	}
	if m.active == role {
		m.active = ""
		if err := m.repo.WriteActiveRole(ctx, ""); err != nil {
			m.log.Warn().Err(err).Msg("failed to clear active role")
		}
	}

	m.recordAudit(ctx, "logout", role, "", "success")
	m.log.Info().Str("role", string(role)).Msg("logged out")
	return nil
}

// LogoutAll erases every session and the active role. Calling it twice ends
// in the same state both times.
func (m *SessionManager) LogoutAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions = domain.NewSnapshot()
	m.active = ""
	if err := m.repo.ClearAll(ctx); err != nil {
		m.log.Warn().Err(err).Msg("failed to clear session store")
	}

	m.recordAudit(ctx, "logout_all", "", "", "success")
	m.log.Info().Msg("logged out of all roles")
	return nil
}

// SwitchRole makes an already-logged-in role the active one.
func (m *SessionManager) SwitchRole(ctx context.Context, role domain.RoleKey) (domain.RoleKey, error) {
	if !role.Valid() {
		return "", domain.NewLoginError(domain.ErrUnknownRole, "role %q is not recognized", role)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessions[role].Empty() {
		return "", domain.NewLoginError(domain.ErrNotLoggedIn, "role %q has no session to switch to", role)
	}
	m.active = role
	if err := m.repo.WriteActiveRole(ctx, role); err != nil {
		m.log.Warn().Err(err).Str("role", string(role)).Msg("failed to persist active role")
	}

	m.recordAudit(ctx, "switch", role, "", "success")
	return role, nil
}

// ActiveRole returns the current active role, ok=false when none is set.
func (m *SessionManager) ActiveRole() (domain.RoleKey, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.active != ""
}

// ActiveRoles lists roles with a live session in RolePriority order.
func (m *SessionManager) ActiveRoles() []domain.RoleKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeRolesLocked()
}

// IsLoggedIn reports whether role has a live session.
func (m *SessionManager) IsLoggedIn(role domain.RoleKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.sessions[role].Empty()
}

// ActiveToken returns preferred's token when preferred is given, otherwise
// the first live session's token in RolePriority order. The active role plays
// no part here; this serves API collaborators that address a role directly.
func (m *SessionManager) ActiveToken(preferred domain.RoleKey) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if preferred != "" {
		rec := m.sessions[preferred]
		return rec.Token, !rec.Empty()
	}
	for _, role := range domain.RolePriority {
		if rec := m.sessions[role]; !rec.Empty() {
			return rec.Token, true
		}
	}
	return "", false
}

// Auth returns the session record for one role, ok=false when empty.
func (m *SessionManager) Auth(role domain.RoleKey) (domain.SessionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.sessions[role]
	if rec.Empty() {
		return domain.EmptyRecord(role), false
	}
	if rec.Profile != nil {
		p := *rec.Profile
		rec.Profile = &p
	}
	return rec, true
}

// Snapshot returns a copy of all slots, for read-only display.
func (m *SessionManager) Snapshot() domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions.Clone()
}

func (m *SessionManager) activeRolesLocked() []domain.RoleKey {
	roles := make([]domain.RoleKey, 0, len(domain.RolePriority))
	for _, role := range domain.RolePriority {
		if !m.sessions[role].Empty() {
			roles = append(roles, role)
		}
	}
	return roles
}

func (m *SessionManager) storeRecord(ctx context.Context, rec domain.SessionRecord) {
	m.sessions[rec.Role] = rec
	if err := m.repo.Write(ctx, rec.Role, rec); err != nil {
		m.log.Warn().Err(err).Str("role", string(rec.Role)).Msg("failed to persist session slot")
	}
}

// storeSecondaryRoles distributes every role in the response beyond the
// primary into its own slot. Roles with their own token use it; roles merely
// listed as available reuse the primary token. Unrecognized role strings are
// skipped with a warning, never stored under a guessed key.
func (m *SessionManager) storeSecondaryRoles(ctx context.Context, up *ports.UpstreamLogin, primary domain.RoleKey, now time.Time) {
	if len(up.RoleTokens) > 0 {
		for _, raw := range sortedKeys(up.RoleTokens) {
			token := up.RoleTokens[raw]
			role, ok := domain.NormalizeRole(raw)
			if !ok {
				m.log.Warn().Str("role", raw).Msg("skipping unrecognized role in roleTokens")
				continue
			}
			if role == primary || token == "" {
				continue
			}
			profile := up.User
			if p := roleProfileEntry(up, role); p != nil {
				profile = p
			}
			m.storeRecord(ctx, domain.SessionRecord{Role: role, Token: token, Profile: profile, LastUpdated: now})
		}
		return
	}

	for _, raw := range up.AvailableRoles {
		role, ok := domain.NormalizeRole(raw)
		if !ok {
			m.log.Warn().Str("role", raw).Msg("skipping unrecognized role in availableRoles")
			continue
		}
		if role == primary {
			continue
		}
		m.storeRecord(ctx, domain.SessionRecord{Role: role, Token: up.Token, Profile: up.User, LastUpdated: now})
	}
}

// resolvePrimaryRole determines which role the backend's primary profile
// represents: the profile's userType when it normalizes, else a role claim
// peeked from the token. The peek deliberately skips signature verification;
// token authenticity is the backend's concern, we only read the label.
func (m *SessionManager) resolvePrimaryRole(up *ports.UpstreamLogin) (domain.RoleKey, bool) {
	if role, ok := domain.NormalizeRole(up.User.UserType); ok {
		return role, true
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(up.Token, claims); err == nil {
		for _, key := range []string{"role", "userType"} {
			if s, ok := claims[key].(string); ok {
				if role, ok := domain.NormalizeRole(s); ok {
					return role, true
				}
			}
		}
	}
	return "", false
}

func (m *SessionManager) recordAudit(ctx context.Context, event string, role domain.RoleKey, email, outcome string) {
	if m.audit == nil {
		return
	}
	entry := ports.AuditEntry{Event: event, Role: role, Email: email, Outcome: outcome, At: time.Now().UTC()}
	if err := m.audit.Record(ctx, entry); err != nil {
		m.log.Warn().Err(err).Str("event", event).Msg("failed to record audit entry")
	}
}

func roleTokenEntry(up *ports.UpstreamLogin, role domain.RoleKey) string {
	for raw, token := range up.RoleTokens {
		if r, ok := domain.NormalizeRole(raw); ok && r == role {
			return token
		}
	}
	return ""
}

func roleProfileEntry(up *ports.UpstreamLogin, role domain.RoleKey) *domain.Profile {
	for raw, profile := range up.RoleProfiles {
		if r, ok := domain.NormalizeRole(raw); ok && r == role {
			return profile
		}
	}
	return nil
}

func listsRole(available []string, role domain.RoleKey) bool {
	for _, raw := range available {
		if r, ok := domain.NormalizeRole(raw); ok && r == role {
			return true
		}
	}
	return false
}

// failureKind condenses a login error to a short audit label.
func failureKind(err error) string {
	var le *domain.LoginError
	if errors.As(err, &le) {
		switch le.Kind {
		case domain.ErrInvalidCredentials:
			return "invalid_credentials"
		case domain.ErrRoleForbidden:
			return "role_forbidden"
		case domain.ErrRateLimited:
			return "rate_limited"
		case domain.ErrUpstreamServer:
			return "upstream_error"
		case domain.ErrUpstreamUnreachable:
			return "network_error"
		case domain.ErrUnknownRole:
			return "unknown_role"
		case domain.ErrMalformedResponse:
			return "malformed_response"
		}
	}
	return "error"
}

func roleStrings(roles []domain.RoleKey) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
