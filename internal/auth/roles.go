package auth

import "context"

// Role is the coarse permission level of a caller.
type Role string

const (
	// RoleAdmin may author templates and mappings.
	RoleAdmin Role = "admin"
	// RoleCaseworker may generate forms and read submissions.
	RoleCaseworker Role = "caseworker"
)

// AdminGroup is the identity-provider group whose members act as RoleAdmin.
const AdminGroup = "casefiling-admins"

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string
	Email  string
	Role   Role
}

// IsAdmin reports whether the principal may perform authoring operations.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by the auth middleware.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func roleFromGroups(groups []string) Role {
	for _, g := range groups {
		if g == AdminGroup {
			return RoleAdmin
		}
	}
	return RoleCaseworker
}
