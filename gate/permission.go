package gate

import "strings"

// Permission is an allowed action on a resource type, written
// "resource:action" (e.g. "sale:create", "stock:view").
type Permission string

// NewPermission creates a permission from resource type and action.
func NewPermission(resourceType string, action Action) Permission {
	return Permission(resourceType + ":" + string(action))
}

// Parse splits a permission into resource type and action.
func (p Permission) Parse() (resourceType string, action Action) {
	res, act, ok := strings.Cut(string(p), ":")
	if !ok {
		return "", ""
	}
	return res, Action(act)
}

// Wildcards for super permissions
const (
	WildcardAll                     = "*"
	PermissionSuperAdmin Permission = "*:*"
)

// Matches checks if this permission grants the requested one.
// "*:*" grants everything and "sale:*" grants every sale action.
func (p Permission) Matches(requested Permission) bool {
	if p == PermissionSuperAdmin || p == requested {
		return true
	}
	res, act := p.Parse()
	reqRes, _ := requested.Parse()
	return res != "" && res == reqRes && string(act) == WildcardAll
}

// ParsePermissions converts "resource:action" codes, skipping malformed ones.
func ParsePermissions(codes []string) []Permission {
	perms := make([]Permission, 0, len(codes))
	for _, c := range codes {
		if res, act := Permission(c).Parse(); res != "" && act != "" {
			perms = append(perms, Permission(c))
		}
	}
	return perms
}
