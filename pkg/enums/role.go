package enums

// Role identifies the kind of platform user behind an access token.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	return r == RoleStudent || r == RoleTeacher
}
