// Package domain holds the in-memory state of the coordinator: who is
// connected, which sessions exist, and the recent chat window.
package domain

import (
	"fmt"
	"strings"
)

// Role is the fixed capability a participant registers with.
type Role uint8

const (
	RoleUnspecified Role = iota
	RoleHost
	RoleJoiner
)

// ParseRole maps a wire value to a Role. The legacy values "tutor" and
// "student" are accepted as host and joiner.
func ParseRole(value string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "host", "tutor":
		return RoleHost, nil
	case "joiner", "student":
		return RoleJoiner, nil
	default:
		return RoleUnspecified, fmt.Errorf("%w: %q", ErrInvalidRole, value)
	}
}

// String returns the canonical wire value.
func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleJoiner:
		return "joiner"
	default:
		return "unspecified"
	}
}

// Valid reports whether r is one of the two registrable roles.
func (r Role) Valid() bool {
	switch r {
	case RoleHost, RoleJoiner:
		return true
	default:
		return false
	}
}
