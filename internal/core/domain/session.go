package domain

import "time"

// Profile is the user profile the authentication backend returns alongside a
// token. UserType is the backend's denormalized role string; it is kept
// verbatim, the canonical role lives on the SessionRecord.
type Profile struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName,omitempty"`
	UserType string `json:"userType,omitempty"`
}

// SessionRecord is the (token, profile) pair held for one role. A role with
// no session is represented by an explicit empty record, never by an absent
// key, so the full role set is always addressable.
type SessionRecord struct {
	Role        RoleKey   `json:"role"`
	Token       string    `json:"token,omitempty"`
	Profile     *Profile  `json:"profile,omitempty"`
	LastUpdated time.Time `json:"last_updated,omitempty"`
}

// Empty reports whether the record holds no usable session. A token without a
// profile (or the reverse) counts as empty: half a pair is corrupt, not a
// partial session.
func (r SessionRecord) Empty() bool {
	return r.Token == "" || r.Profile == nil
}

// EmptyRecord returns the explicit empty record for role.
func EmptyRecord(role RoleKey) SessionRecord {
	return SessionRecord{Role: role}
}

// Snapshot holds exactly one record per canonical role.
type Snapshot map[RoleKey]SessionRecord

// NewSnapshot returns a snapshot with every role present and empty.
func NewSnapshot() Snapshot {
	s := make(Snapshot, len(RolePriority))
	for _, role := range RolePriority {
		s[role] = EmptyRecord(role)
	}
	return s
}

// Clone returns an independent copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for role, rec := range s {
		if rec.Profile != nil {
			p := *rec.Profile
			rec.Profile = &p
		}
		out[role] = rec
	}
	return out
}

// LoginOutcome is what a successful login resolves to: the session that
// became active plus every role the call left logged in.
type LoginOutcome struct {
	Role           RoleKey   `json:"role"`
	Token          string    `json:"token"`
	Profile        *Profile  `json:"user"`
	AvailableRoles []RoleKey `json:"available_roles"`
}
