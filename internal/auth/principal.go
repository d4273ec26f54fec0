package auth

import (
	"context"

	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/user/entity"
)

// Principal is the resolved identity attached to a request.
type Principal struct {
	UserID int64
	Role   entity.Role
}

// IsAdmin reports whether the principal holds the ADMIN role.
func (p Principal) IsAdmin() bool { return p.Role == entity.RoleAdmin }

// requestIdentity is written once per request by the resolver.
type requestIdentity struct {
	principal *Principal
	tokenErr  error
}

type identityContextKey struct{}

func withIdentity(ctx context.Context, id requestIdentity) context.Context {
	if _, ok := ctx.Value(identityContextKey{}).(*requestIdentity); ok {
		return ctx
	}
	return context.WithValue(ctx, identityContextKey{}, &id)
}

// WithPrincipal attaches p to ctx unless an identity was already resolved for it.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return withIdentity(ctx, requestIdentity{principal: &p})
}

// PrincipalFromContext returns the principal resolved for the request, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*requestIdentity)
	if !ok || id.principal == nil {
		return nil, false
	}
	p := *id.principal
	return &p, true
}

// TokenErrorFromContext returns the bearer token verification failure recorded
// for the request, or nil.
func TokenErrorFromContext(ctx context.Context) error {
	id, ok := ctx.Value(identityContextKey{}).(*requestIdentity)
	if !ok {
		return nil
	}
	return id.tokenErr
}
