package auth

import (
	"strings"

	"github.com/transportco2/transportco2/internal/provider/co2api"
)

// Role is the BFF's closed set of account roles.
type Role string

const (
	RoleVisitor Role = "visitor"
	RoleNormal  Role = "normal"
	RoleAdmin   Role = "admin"
)

var roleRank = map[Role]int{
	RoleVisitor: 0,
	RoleNormal:  1,
	RoleAdmin:   2,
}

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// Allows reports whether r satisfies a route requiring min.
func (r Role) Allows(min Role) bool {
	have, ok := roleRank[r]
	if !ok {
		return false
	}
	return have >= roleRank[min]
}

// Backend returns the backend's name for r.
func (r Role) Backend() string {
	switch r {
	case RoleAdmin:
		return co2api.RoleAdmin
	case RoleNormal:
		return co2api.RoleNormal
	default:
		return co2api.RoleVisitor
	}
}

// RoleFromBackend maps a backend role name. Unknown names become visitor.
func RoleFromBackend(name string) Role {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "admin", "role_admin":
		return RoleAdmin
	case "normal", "role_normal", "user":
		return RoleNormal
	default:
		return RoleVisitor
	}
}
