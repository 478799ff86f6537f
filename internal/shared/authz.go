package shared

import "strings"

// Role is the single role a user holds.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleSales     Role = "SALES"
	RoleFinance   Role = "FINANCE"
	RoleWarehouse Role = "WAREHOUSE"
	RoleHelper    Role = "HELPER"
)

// AllRoles lists every role.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleSales, RoleFinance, RoleWarehouse, RoleHelper}
}

// ParseRole normalises a role name; unknown names yield "".
func ParseRole(raw string) Role {
	r := Role(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range AllRoles() {
		if r == known {
			return r
		}
	}
	return ""
}

// CanSell reports the sales capability: the user may own orders and targets.
func (r Role) CanSell() bool {
	return r == RoleSales
}
