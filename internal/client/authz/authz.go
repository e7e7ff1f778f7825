// Package authz answers capability questions for the client from the shared
// role-to-permission table. Decisions are local; the server re-checks every
// request, so this layer only gates what the UI offers.
package authz

import "craftdesk.org/internal/auth"

// Resolver holds the materialized permission set for one role.
type Resolver struct {
	role  auth.Role
	perms map[string]struct{}
}

// NewResolver resolves the permission set for the role. Unknown roles get
// the empty set, which denies everything.
func NewResolver(role auth.Role) Resolver {
	return Resolver{role: role, perms: auth.PermissionSet(role)}
}

func (r Resolver) Role() auth.Role { return r.role }

// HasPermission reports whether the role grants the permission key. Admin
// short-circuits true regardless of table contents.
func (r Resolver) HasPermission(key string) bool {
	if r.role == auth.RoleAdmin {
		return true
	}
	_, ok := r.perms[key]
	return ok
}

// HasAny reports whether at least one of the keys is granted. An empty
// argument list yields false for non-admin roles.
func (r Resolver) HasAny(keys ...string) bool {
	if r.role == auth.RoleAdmin {
		return true
	}
	for _, key := range keys {
		if r.HasPermission(key) {
			return true
		}
	}
	return false
}

// HasAll reports whether every key is granted. Vacuously true on an empty
// argument list.
func (r Resolver) HasAll(keys ...string) bool {
	if r.role == auth.RoleAdmin {
		return true
	}
	for _, key := range keys {
		if !r.HasPermission(key) {
			return false
		}
	}
	return true
}
