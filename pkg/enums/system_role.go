package enums

// SystemRole is stored on users.system_role and carried in access tokens.
type SystemRole string

const (
	SystemRoleCustomer SystemRole = "customer"
	SystemRoleAdmin    SystemRole = "admin"
)

// IsValid reports whether the role is known.
func (r SystemRole) IsValid() bool {
	return r == SystemRoleCustomer || r == SystemRoleAdmin
}
