package rbac

import "testing"

func TestRoleOrdering(t *testing.T) {
	if !(RoleViewer < RoleEditor && RoleEditor < RoleOwner) {
		t.Fatalf("role ordinals out of order: viewer=%d editor=%d owner=%d", RoleViewer, RoleEditor, RoleOwner)
	}
}

func TestMeets(t *testing.T) {
	cases := []struct {
		role, min Role
		want      bool
	}{
		{RoleViewer, RoleViewer, true},
		{RoleViewer, RoleEditor, false},
		{RoleViewer, RoleOwner, false},
		{RoleEditor, RoleViewer, true},
		{RoleEditor, RoleEditor, true},
		{RoleEditor, RoleOwner, false},
		{RoleOwner, RoleViewer, true},
		{RoleOwner, RoleEditor, true},
		{RoleOwner, RoleOwner, true},
	}
	for _, c := range cases {
		if got := c.role.Meets(c.min); got != c.want {
			t.Errorf("%s.Meets(%s) = %v, want %v", c.role, c.min, got, c.want)
		}
	}
}

func TestParseRole(t *testing.T) {
	for _, name := range []string{"viewer", "editor", "owner"} {
		role, ok := ParseRole(name)
		if !ok {
			t.Errorf("ParseRole(%q) not ok", name)
		}
		if role.String() != name {
			t.Errorf("ParseRole(%q).String() = %q", name, role.String())
		}
	}
	if _, ok := ParseRole("admin"); ok {
		t.Error("ParseRole accepted unknown role")
	}
	if _, ok := ParseRole(""); ok {
		t.Error("ParseRole accepted empty role")
	}
}
