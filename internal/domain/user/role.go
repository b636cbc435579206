package user

import "fmt"

// Role decides a user's storage partition and its updatable fields.
type Role int

const (
	RoleUser Role = iota
	RoleAdmin
	RolePatient
)

// StoredRoles lists the roles that own a storage partition, in lookup order.
var StoredRoles = []Role{RoleAdmin, RolePatient}

var roleNames = map[Role]string{
	RoleUser:    "User",
	RoleAdmin:   "Admin",
	RolePatient: "Patient",
}

func (r Role) String() string {
	if s, ok := roleNames[r]; ok {
		return s
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Partition returns the directory name holding users of this role.
func (r Role) Partition() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RolePatient:
		return "patient"
	default:
		return "user"
	}
}

// RoleToString returns the canonical display name of r.
func RoleToString(r Role) string {
	return r.String()
}

// StringToRole is the inverse of RoleToString.
func StringToRole(s string) (Role, error) {
	for r, name := range roleNames {
		if name == s {
			return r, nil
		}
	}
	return RoleUser, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

func (r Role) MarshalText() ([]byte, error) {
	if _, ok := roleNames[r]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, int(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := StringToRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
