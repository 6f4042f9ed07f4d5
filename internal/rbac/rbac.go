// Package rbac defines the ordinal role hierarchy used for document access.
package rbac

// Role is an ordered access level. Higher roles include every
// capability of the roles below them.
type Role int

const (
	RoleViewer Role = iota
	RoleEditor
	RoleOwner
)

var roleNames = map[Role]string{
	RoleViewer: "viewer",
	RoleEditor: "editor",
	RoleOwner:  "owner",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "viewer"
}

// Meets reports whether r grants at least the capabilities of min.
func (r Role) Meets(min Role) bool {
	return r >= min
}

// ParseRole maps a wire-format role name to a Role. The second return
// is false for unknown names.
func ParseRole(name string) (Role, bool) {
	switch name {
	case "viewer":
		return RoleViewer, true
	case "editor":
		return RoleEditor, true
	case "owner":
		return RoleOwner, true
	default:
		return RoleViewer, false
	}
}
