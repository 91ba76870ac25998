// Package auth is reused boundary scaffolding: bearer-token issuance,
// the guest/job-token flow, and optional LDAP/OIDC provider
// configuration. It does not implement user registration or password
// hashing flows — only enough to put a *schema.User on a request
// context for the engine (C1-C6) to authorize against.
package auth

import (
	"context"

	"github.com/ccs-amsterdam/annotinder-server/pkg/schema"
)

type ctxKey int

const userCtxKey ctxKey = iota

// WithUser returns a context carrying user, the way middleware attaches
// the authenticated principal before handlers run.
func WithUser(ctx context.Context, user *schema.User) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// GetUser returns the authenticated user for ctx, or nil if the request
// is unauthenticated.
func GetUser(ctx context.Context) *schema.User {
	user, _ := ctx.Value(userCtxKey).(*schema.User)
	return user
}

// HasRole reports whether user holds role. The engine only has two
// roles: every user is a coder, and IsAdmin users are admins. The
// job-management handlers check admin; the jobset router's
// restricted-job and restricted-coding-job gates do not consult it.
func HasRole(user *schema.User, role Role) bool {
	if user == nil {
		return false
	}
	switch role {
	case RoleAdmin:
		return user.IsAdmin
	case RoleCoder:
		return true
	default:
		return false
	}
}

// Role is a coarse authorization tier.
type Role int

const (
	RoleCoder Role = iota
	RoleAdmin
)
