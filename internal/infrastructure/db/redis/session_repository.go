package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/opsdeck/session-gateway/internal/core/domain"
	"github.com/opsdeck/session-gateway/internal/core/ports"
)

const activeRoleKey = "active_role"

// SessionRepository persists session slots in Redis under independent keys:
// <prefix><role>_token, <prefix><role>_user and <prefix>active_role. Keeping
// token and profile per role (instead of one serialized blob) means writing
// role B can never clobber role A, even if a write is cut short.
type SessionRepository struct {
	client *redis.Client
	prefix string
}

// NewSessionRepository wraps client; prefix namespaces the keys (e.g. "console:").
func NewSessionRepository(client *redis.Client, prefix string) *SessionRepository {
	return &SessionRepository{client: client, prefix: prefix}
}

var _ ports.SessionRepository = (*SessionRepository)(nil)

// ReadAll loads every slot plus the active role marker in one pipeline. A
// slot missing either half of its pair, or whose profile fails to decode,
// collapses to empty.
func (r *SessionRepository) ReadAll(ctx context.Context) (domain.Snapshot, domain.RoleKey, error) {
	pipe := r.client.Pipeline()
	tokenCmds := make(map[domain.RoleKey]*redis.StringCmd, len(domain.RolePriority))
	userCmds := make(map[domain.RoleKey]*redis.StringCmd, len(domain.RolePriority))
	for _, role := range domain.RolePriority {
		tokenCmds[role] = pipe.Get(ctx, r.tokenKey(role))
		userCmds[role] = pipe.Get(ctx, r.userKey(role))
	}
	activeCmd := pipe.Get(ctx, r.prefix+activeRoleKey)

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, "", fmt.Errorf("read sessions: %w", err)
	}

	snap := domain.NewSnapshot()
	for _, role := range domain.RolePriority {
		token, terr := tokenCmds[role].Result()
		raw, uerr := userCmds[role].Result()
		if terr != nil || uerr != nil || token == "" {
			continue
		}
		var profile domain.Profile
		if err := json.Unmarshal([]byte(raw), &profile); err != nil {
			continue
		}
		snap[role] = domain.SessionRecord{Role: role, Token: token, Profile: &profile}
	}

	var active domain.RoleKey
	if raw, err := activeCmd.Result(); err == nil {
		if role, ok := domain.NormalizeRole(raw); ok {
			active = role
		}
	}
	return snap, active, nil
}

// Write stores one slot. An empty record erases it instead.
func (r *SessionRepository) Write(ctx context.Context, role domain.RoleKey, rec domain.SessionRecord) error {
	if rec.Empty() {
		return r.Erase(ctx, role)
	}
	raw, err := json.Marshal(rec.Profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.tokenKey(role), rec.Token, 0)
	pipe.Set(ctx, r.userKey(role), raw, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write session %s: %w", role, err)
	}
	return nil
}

// Erase empties one slot.
func (r *SessionRepository) Erase(ctx context.Context, role domain.RoleKey) error {
	if err := r.client.Del(ctx, r.tokenKey(role), r.userKey(role)).Err(); err != nil {
		return fmt.Errorf("erase session %s: %w", role, err)
	}
	return nil
}

// WriteActiveRole persists the marker; "" deletes it.
func (r *SessionRepository) WriteActiveRole(ctx context.Context, role domain.RoleKey) error {
	key := r.prefix + activeRoleKey
	if role == "" {
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("clear active role: %w", err)
		}
		return nil
	}
	if err := r.client.Set(ctx, key, string(role), 0).Err(); err != nil {
		return fmt.Errorf("write active role: %w", err)
	}
	return nil
}

// ClearAll deletes every slot and the marker in one command.
func (r *SessionRepository) ClearAll(ctx context.Context) error {
	keys := make([]string, 0, len(domain.RolePriority)*2+1)
	for _, role := range domain.RolePriority {
		keys = append(keys, r.tokenKey(role), r.userKey(role))
	}
	keys = append(keys, r.prefix+activeRoleKey)
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}
	return nil
}

func (r *SessionRepository) tokenKey(role domain.RoleKey) string {
	return fmt.Sprintf("%s%s_token", r.prefix, role)
}

func (r *SessionRepository) userKey(role domain.RoleKey) string {
	return fmt.Sprintf("%s%s_user", r.prefix, role)
}
