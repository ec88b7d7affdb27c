package ports

import (
	"context"

	"github.com/opsdeck/session-gateway/internal/core/domain"
)

// Credentials is what a login attempt sends upstream. Role is the normalized
// requested-role hint, empty when the caller did not ask for a specific role.
type Credentials struct {
	Email    string
	Password string
	Role     string
}

// UpstreamLogin is the decoded shape of a successful backend login. Token and
// User are the primary session; RoleTokens/RoleProfiles carry per-role
// sessions when the account holds several roles; AvailableRoles lists roles
// the account holds without a distinct token.
type UpstreamLogin struct {
	Token          string
	User           *domain.Profile
	RoleTokens     map[string]string
	RoleProfiles   map[string]*domain.Profile
	AvailableRoles []string
}

// Authenticator is the external login collaborator. Implementations map
// transport and status failures onto the domain login taxonomy.
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (*UpstreamLogin, error)
}
