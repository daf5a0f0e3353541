package models

import "github.com/golang-jwt/jwt/v5"

// Role names an authority granted to a caller.
type Role string

// Roles mirror the administrative desks that drive the ledgers.
const (
	RoleAdmin         Role = "ADMIN"
	RoleRegistrar     Role = "REGISTRAR"
	RoleCourseManager Role = "COURSE_MANAGER"
	RoleBursar        Role = "BURSAR"
	RoleAnalyst       Role = "ANALYST"
)

// Roles lists every known role.
func Roles() []Role {
	return []Role{RoleAdmin, RoleRegistrar, RoleCourseManager, RoleBursar, RoleAnalyst}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles() {
		if r == known {
			return true
		}
	}
	return false
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	Name  string `json:"name,omitempty"`
	Roles []Role `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claims carry any of the given roles. ADMIN satisfies all.
func (c *JWTClaims) HasRole(roles ...Role) bool {
	if c == nil {
		return false
	}
	for _, held := range c.Roles {
		if held == RoleAdmin {
			return true
		}
		for _, want := range roles {
			if held == want {
				return true
			}
		}
	}
	return false
}
