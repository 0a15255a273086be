package authz

const (
	RoleEmployee = 10
	RoleDirector = 40
	RoleAdmin    = 50
)

func IsValid(roleID int) bool {
	return roleID == RoleEmployee || roleID == RoleDirector || roleID == RoleAdmin
}

// CanAssign reports whether the role may route tasks to directors/employees.
func CanAssign(roleID int) bool {
	return roleID == RoleDirector || roleID == RoleAdmin
}

func Name(roleID int) string {
	switch roleID {
	case RoleEmployee:
		return "employee"
	case RoleDirector:
		return "director"
	case RoleAdmin:
		return "admin"
	}
	return "unknown"
}

// Parse accepts a role name or its numeric id.
func Parse(s string) (int, bool) {
	switch s {
	case "employee", "10":
		return RoleEmployee, true
	case "director", "40":
		return RoleDirector, true
	case "admin", "50":
		return RoleAdmin, true
	}
	return 0, false
}
