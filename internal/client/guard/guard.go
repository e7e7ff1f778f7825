// Package guard decides whether navigation to a view is allowed. It only
// decides; performing the redirect belongs to the caller.
package guard

import (
	"context"

	"craftdesk.org/internal/client/authz"
	"craftdesk.org/internal/client/session"
)

const (
	loginTarget     = "/login"
	forbiddenTarget = "/forbidden"
)

// Requirements describe what a route demands.
type Requirements struct {
	RequireAuth bool
	Permissions []string
}

// Decision is the guard verdict. Redirect is empty when Allowed.
type Decision struct {
	Allowed  bool
	Redirect string
}

// Guard evaluates route requirements against the live session.
type Guard struct {
	session *session.Manager
}

func New(s *session.Manager) *Guard {
	return &Guard{session: s}
}

// Check evaluates authentication before permissions: an expired session
// redirects to login even when the route also lists permissions.
func (g *Guard) Check(ctx context.Context, req Requirements) Decision {
	needsAuth := req.RequireAuth || len(req.Permissions) > 0
	if needsAuth && !g.session.IsAuthenticated(ctx) {
		return Decision{Redirect: loginTarget}
	}
	if len(req.Permissions) > 0 {
		resolver := g.session.Resolver()
		if !resolver.HasAll(req.Permissions...) {
			return Decision{Redirect: forbiddenTarget}
		}
	}
	return Decision{Allowed: true}
}

// Resolver exposes the current permission resolver for callers that want
// finer-grained checks than a whole-route verdict.
func (g *Guard) Resolver() authz.Resolver {
	return g.session.Resolver()
}
