// Package auth issues and verifies access tokens and answers authorization
// questions for the request's identity.
package auth

import (
	"context"
	"slices"

	"github.com/vitaria/catalog/internal/common"
	"github.com/vitaria/catalog/internal/server/models"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Email  string
	Role   models.Role
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != ""
}

// Authorizer gates operations by role. Services call it before any storage
// or database side effect.
type Authorizer interface {
	// RequireRole returns the caller's identity when it holds one of roles.
	// With no roles any authenticated caller passes.
	RequireRole(ctx context.Context, roles ...models.Role) (Identity, error)
}

// RoleAuthorizer checks the identity stored in the context.
type RoleAuthorizer struct{}

func (RoleAuthorizer) RequireRole(ctx context.Context, roles ...models.Role) (Identity, error) {
	id, ok := IdentityFrom(ctx)
	if !ok {
		return Identity{}, common.ErrorUnauthorized
	}
	if len(roles) > 0 && !slices.Contains(roles, id.Role) {
		return Identity{}, common.ErrorForbidden
	}
	return id, nil
}
