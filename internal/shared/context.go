package shared

import "context"

// Role identifies the coarse access level of an authenticated user.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleSeller   Role = "seller"
	RoleCustomer Role = "customer"
)

// Identity is the resolved result of an access-control check.
type Identity struct {
	UserID int64
	Role   Role
}

type contextKey string

const identityKey contextKey = "identity"

// ContextWithIdentity stores the identity in the request context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the identity, if any, from the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
