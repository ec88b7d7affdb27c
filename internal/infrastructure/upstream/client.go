// Package upstream implements the Authenticator port against the dashboard
// backend's HTTP login endpoint.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsdeck/session-gateway/internal/core/domain"
	"github.com/opsdeck/session-gateway/internal/core/ports"
)

const defaultTimeout = 10 * time.Second

// Client calls POST <base>/auth/login and maps the response onto the login
// taxonomy. It trusts the backend's response shape; tokens are opaque here.
type Client struct {
	base string
	http *http.Client
	log  zerolog.Logger
}

// NewClient builds a Client for the backend at base (no trailing slash).
func NewClient(base string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		base: base,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

var _ ports.Authenticator = (*Client)(nil)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// linkedProfile is the backend's alternate encoding of a per-role session.
type linkedProfile struct {
	Role  string          `json:"role"`
	Token string          `json:"token,omitempty"`
	User  *domain.Profile `json:"user,omitempty"`
}

type loginData struct {
	Token          string                     `json:"token"`
	AccessToken    string                     `json:"accessToken"`
	User           *domain.Profile            `json:"user"`
	RoleTokens     map[string]string          `json:"roleTokens"`
	RoleProfiles   map[string]*domain.Profile `json:"roleProfiles"`
	LinkedProfiles []linkedProfile            `json:"linkedProfiles"`
	AvailableRoles []string                   `json:"availableRoles"`
}

type loginEnvelope struct {
	Data loginData `json:"data"`
}

func (c *Client) Login(ctx context.Context, creds ports.Credentials) (*ports.UpstreamLogin, error) {
	body, err := json.Marshal(loginRequest{Email: creds.Email, Password: creds.Password, Role: creds.Role})
	if err != nil {
		return nil, fmt.Errorf("encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Msg("login request failed to reach backend")
		return nil, domain.NewLoginError(domain.ErrUpstreamUnreachable, "no response from authentication backend")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// handled below
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, domain.NewLoginError(domain.ErrInvalidCredentials, "email or password is incorrect")
	case resp.StatusCode == http.StatusForbidden:
		return nil, domain.NewLoginError(domain.ErrRoleForbidden, "backend refused the requested role")
	case resp.StatusCode == http.StatusTooManyRequests:
		le := domain.NewLoginError(domain.ErrRateLimited, "too many login attempts")
		le.RetryAfter = retryAfter(resp)
		return nil, le
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, domain.NewLoginError(domain.ErrUpstreamServer, "backend returned status %d", resp.StatusCode)
	default:
		return nil, domain.NewLoginError(domain.ErrMalformedResponse, "unexpected status %d from backend", resp.StatusCode)
	}

	var env loginEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, domain.NewLoginError(domain.ErrMalformedResponse, "undecodable login response")
	}

	data := env.Data
	token := data.Token
	if token == "" {
		token = data.AccessToken
	}
	if token == "" || data.User == nil {
		return nil, domain.NewLoginError(domain.ErrMalformedResponse, "login response is missing token or user")
	}

	up := &ports.UpstreamLogin{
		Token:          token,
		User:           data.User,
		RoleTokens:     data.RoleTokens,
		RoleProfiles:   data.RoleProfiles,
		AvailableRoles: data.AvailableRoles,
	}
	mergeLinkedProfiles(up, data.LinkedProfiles)
	return up, nil
}

// mergeLinkedProfiles folds the linkedProfiles encoding into the
// roleTokens/roleProfiles maps so the manager only deals with one shape.
// Entries already present in the maps win.
func mergeLinkedProfiles(up *ports.UpstreamLogin, linked []linkedProfile) {
	for _, lp := range linked {
		if lp.Role == "" {
			continue
		}
		if lp.Token != "" {
			if up.RoleTokens == nil {
				up.RoleTokens = make(map[string]string)
			}
			if _, exists := up.RoleTokens[lp.Role]; !exists {
				up.RoleTokens[lp.Role] = lp.Token
			}
		} else {
			up.AvailableRoles = append(up.AvailableRoles, lp.Role)
		}
		if lp.User != nil {
			if up.RoleProfiles == nil {
				up.RoleProfiles = make(map[string]*domain.Profile)
			}
			if _, exists := up.RoleProfiles[lp.Role]; !exists {
				up.RoleProfiles[lp.Role] = lp.User
			}
		}
	}
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
