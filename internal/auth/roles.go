package auth

import "strings"

// Role is the closed set of user roles. The permission table below is the
// single source of truth for role capabilities on both the server and the
// client; changing it changes behavior immediately for the whole session.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleDesigner Role = "designer"
	RoleFinance  Role = "finance"
	RoleSales    Role = "sales"
	RoleViewer   Role = "viewer"
)

// ParseRole normalizes a role string. ok is false for roles outside the
// closed enumeration; callers treat those as deny-all, never as an error.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.TrimSpace(strings.ToLower(raw)))
	switch role {
	case RoleAdmin, RoleDesigner, RoleFinance, RoleSales, RoleViewer:
		return role, true
	}
	return Role(raw), false
}

// Permission keys use the resource:action form.
const (
	PermProjectCreate       = "project:create"
	PermProjectRead         = "project:read"
	PermProjectUpdate       = "project:update"
	PermProjectDelete       = "project:delete"
	PermProjectStatusChange = "project:status_change"
	PermProjectFinancial    = "project:financial"

	PermTaskCreate = "task:create"
	PermTaskRead   = "task:read"
	PermTaskUpdate = "task:update"
	PermTaskDelete = "task:delete"
	PermTaskAssign = "task:assign"

	PermSupplierCreate = "supplier:create"
	PermSupplierRead   = "supplier:read"
	PermSupplierUpdate = "supplier:update"
	PermSupplierDelete = "supplier:delete"

	PermUserCreate = "user:create"
	PermUserRead   = "user:read"
	PermUserUpdate = "user:update"
	PermUserDelete = "user:delete"

	PermFileUpload = "file:upload"
	PermFileRead   = "file:read"
	PermFileDelete = "file:delete"

	PermFinancialRead  = "financial:read"
	PermFinancialWrite = "financial:write"

	PermReportView   = "report:view"
	PermReportExport = "report:export"
)

// AllPermissions lists every known permission key.
var AllPermissions = []string{
	PermProjectCreate, PermProjectRead, PermProjectUpdate, PermProjectDelete,
	PermProjectStatusChange, PermProjectFinancial,
	PermTaskCreate, PermTaskRead, PermTaskUpdate, PermTaskDelete, PermTaskAssign,
	PermSupplierCreate, PermSupplierRead, PermSupplierUpdate, PermSupplierDelete,
	PermUserCreate, PermUserRead, PermUserUpdate, PermUserDelete,
	PermFileUpload, PermFileRead, PermFileDelete,
	PermFinancialRead, PermFinancialWrite,
	PermReportView, PermReportExport,
}

// rolePermissions is the static role→permission table. Admin is handled by
// short-circuit in permission checks and therefore has no entry here.
var rolePermissions = map[Role][]string{
	RoleDesigner: {
		PermUserRead,
		PermProjectCreate, PermProjectRead, PermProjectUpdate, PermProjectStatusChange,
		PermTaskCreate, PermTaskRead, PermTaskUpdate,
		PermSupplierRead,
		PermFileUpload, PermFileRead, PermFileDelete,
		PermReportView,
	},
	RoleFinance: {
		PermUserRead,
		PermProjectRead, PermProjectFinancial,
		PermTaskRead,
		PermSupplierRead,
		PermFileRead,
		PermFinancialRead, PermFinancialWrite,
		PermReportView, PermReportExport,
	},
	RoleSales: {
		PermUserRead,
		PermProjectCreate, PermProjectRead, PermProjectUpdate,
		PermTaskRead, PermTaskAssign,
		PermSupplierRead,
		PermFileUpload, PermFileRead,
		PermReportView,
	},
	RoleViewer: {
		PermProjectRead,
		PermTaskRead,
		PermSupplierRead,
		PermFileRead,
		PermReportView,
	},
}

// PermissionSet resolves the materialized permission set for a role.
// Admin resolves to the full catalog; unknown roles resolve to an empty set.
func PermissionSet(role Role) map[string]struct{} {
	if role == RoleAdmin {
		set := make(map[string]struct{}, len(AllPermissions))
		for _, p := range AllPermissions {
			set[p] = struct{}{}
		}
		return set
	}
	perms := rolePermissions[role]
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// HasPermission reports whether role is allowed to execute the action
// identified by key. Admin passes every check regardless of the table.
func HasPermission(role Role, key string) bool {
	if role == RoleAdmin {
		return true
	}
	for _, p := range rolePermissions[role] {
		if p == key {
			return true
		}
	}
	return false
}
