package planner

import (
	"fmt"
	"strconv"
	"strings"
)

// Role is the kind of caller a plan runs for.
type Role string

const (
	// RoleStaff sees every row.
	RoleStaff Role = "staff"

	// RoleStudent sees only rows keyed by their own ID.
	RoleStudent Role = "student"
)

// ParseRole checks a role name. Empty defaults to staff.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleStaff, "":
		return RoleStaff, nil
	case RoleStudent:
		return RoleStudent, nil
	default:
		return "", fmt.Errorf("invalid role %q: must be staff or student", s)
	}
}

// Scope identifies who a plan runs for.
type Scope struct {
	Role   Role
	UserID string
}

// pinnedID returns the key value every step must be restricted to, if any.
func (s Scope) pinnedID() (int64, bool, error) {
	if s.Role != RoleStudent {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(strings.TrimSpace(s.UserID), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %q", ErrInvalidUserID, s.UserID)
	}
	return id, true, nil
}
