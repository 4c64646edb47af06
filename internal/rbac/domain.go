package rbac

import "strings"

// Role names. The inventory-system frontend is used by store staff, the
// procurement-system frontend by purchase staff.
const (
	RoleAdmin     = "admin"
	RoleStore     = "store"
	RolePurchase  = "purchase"
	RoleInspector = "inspector"
	RoleAccounts  = "accounts"
	RoleEmployee  = "employee"
)

var knownRoles = map[string]struct{}{
	RoleAdmin:     {},
	RoleStore:     {},
	RolePurchase:  {},
	RoleInspector: {},
	RoleAccounts:  {},
	RoleEmployee:  {},
}

// IsKnownRole reports whether role is one of the defined roles.
func IsKnownRole(role string) bool {
	_, ok := knownRoles[normalize(role)]
	return ok
}

// Roles lists every defined role.
func Roles() []string {
	return []string{RoleAdmin, RoleStore, RolePurchase, RoleInspector, RoleAccounts, RoleEmployee}
}

func normalize(role string) string {
	return strings.TrimSpace(strings.ToLower(role))
}
