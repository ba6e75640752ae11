package gate_test

import (
	"slices"
	"testing"

	"github.com/diewo77/go-pos/gate"
)

func TestStaticProfile_PermissionsAreSortedAndUnique(t *testing.T) {
	p := gate.NewStaticProfile(1, "vendeur", "stock:view", "sale:create", "product:list", "sale:create")

	want := []gate.Permission{"product:list", "sale:create", "stock:view"}
	if got := p.Permissions(); !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	// the returned slice is a copy
	perms := p.Permissions()
	perms[0] = "*:*"
	if p.HasPermission("sale:cancel") {
		t.Error("mutating Permissions() must not grant anything")
	}
}

func TestStaticProfile_HasPermission(t *testing.T) {
	p := gate.NewStaticProfile(2, "magasinier", "stock:*", "product:view")

	tests := []struct {
		perm gate.Permission
		want bool
	}{
		{"product:view", true},
		{"stock:create", true},
		{"stock:view", true},
		{"product:update", false},
		{"sale:create", false},
	}
	for _, tt := range tests {
		if got := p.HasPermission(tt.perm); got != tt.want {
			t.Errorf("HasPermission(%s) = %v, want %v", tt.perm, got, tt.want)
		}
	}

	admin := gate.NewStaticProfile(3, "admin", gate.PermissionSuperAdmin)
	if !admin.HasPermission("audit:verify") {
		t.Error("superadmin should have every permission")
	}
}
