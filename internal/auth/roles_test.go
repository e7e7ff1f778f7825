package auth

import "testing"

func TestParseRole(t *testing.T) {
	tests := []struct {
		raw  string
		want Role
		ok   bool
	}{
		{"admin", RoleAdmin, true},
		{" Designer ", RoleDesigner, true},
		{"FINANCE", RoleFinance, true},
		{"sales", RoleSales, true},
		{"viewer", RoleViewer, true},
		{"superuser", Role("superuser"), false},
		{"", Role(""), false},
	}
	for _, tt := range tests {
		got, ok := ParseRole(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("ParseRole(%q) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAdminShortCircuitsEveryPermission(t *testing.T) {
	for _, key := range AllPermissions {
		if !HasPermission(RoleAdmin, key) {
			t.Fatalf("admin denied %s", key)
		}
	}
	// Even permissions outside the catalog pass for admin.
	if !HasPermission(RoleAdmin, "made:up") {
		t.Fatalf("admin should pass unknown keys too")
	}
}

func TestUnknownRoleDeniesAll(t *testing.T) {
	set := PermissionSet(Role("intern"))
	if len(set) != 0 {
		t.Fatalf("expected empty set for unknown role, got %d entries", len(set))
	}
	if HasPermission(Role("intern"), PermProjectRead) {
		t.Fatalf("unknown role should be denied")
	}
}

func TestRoleTableMembership(t *testing.T) {
	if !HasPermission(RoleViewer, PermProjectRead) {
		t.Fatalf("viewer should read projects")
	}
	if HasPermission(RoleViewer, PermProjectCreate) {
		t.Fatalf("viewer must not create projects")
	}
	if !HasPermission(RoleFinance, PermProjectFinancial) {
		t.Fatalf("finance should see financial fields")
	}
	if HasPermission(RoleDesigner, PermProjectFinancial) {
		t.Fatalf("designer must not see financial fields")
	}
	if !HasPermission(RoleSales, PermTaskAssign) {
		t.Fatalf("sales should assign tasks")
	}
}

func TestPrincipalPermissions(t *testing.T) {
	p := NewPrincipal(User{ID: "u1", Role: RoleViewer})
	if !p.HasPermission(PermTaskRead) {
		t.Fatalf("expected permission")
	}
	if p.HasPermission(PermTaskDelete) {
		t.Fatalf("unexpected permission")
	}

	admin := NewPrincipal(User{ID: "u2", Role: RoleAdmin})
	if !admin.HasPermission("anything:at_all") {
		t.Fatalf("admin principal should pass every check")
	}
}
