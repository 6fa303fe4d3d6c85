package auth

import "fmt"

// Role is the closed set of account roles carried in bearer tokens.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// OneOf reports whether the role is in the required set. Authorization
// points call this instead of comparing role strings inline.
func (r Role) OneOf(required ...Role) bool {
	for _, req := range required {
		if r == req {
			return true
		}
	}
	return false
}
