package auth

import "context"

// Role is the resolved auth state of a caller. Roles are mutually exclusive.
type Role string

const (
	RoleAnonymous Role = "anonymous"
	RoleParent    Role = "parent"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is a role a session token may carry.
func (r Role) Valid() bool {
	return r == RoleParent || r == RoleAdmin
}

// Session is a signed-in caller. The zero value is anonymous.
type Session struct {
	UserID  string `json:"uid"`
	Email   string `json:"email"`
	Role    Role   `json:"role"`
	TokenID string `json:"-"`
}

// Anonymous reports whether nobody is signed in.
func (s Session) Anonymous() bool {
	return s.UserID == "" || !s.Role.Valid()
}

// EffectiveRole returns RoleAnonymous for anonymous sessions.
func (s Session) EffectiveRole() Role {
	if s.Anonymous() {
		return RoleAnonymous
	}
	return s.Role
}

type sessionKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session in ctx, anonymous when there is none.
func FromContext(ctx context.Context) Session {
	s, _ := ctx.Value(sessionKey{}).(Session)
	return s
}
