package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleChild  = "child" // restricted role, denied unless explicitly allowed
)

func IsAdmin(role string) bool { return role == RoleAdmin }

func IsRestrictedRole(role string) bool { return role == RoleChild }
