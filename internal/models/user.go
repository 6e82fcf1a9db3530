package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles issued by the identity provider.
type UserRole string

const (
	RoleAdministrator UserRole = "administrator"
	RoleTutor         UserRole = "tutor"
	RoleStudent       UserRole = "student"
)

// IsValid checks if the role is one of the allowed values.
func (r UserRole) IsValid() bool {
	switch r {
	case RoleAdministrator, RoleTutor, RoleStudent:
		return true
	default:
		return false
	}
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	jwt.RegisteredClaims
}

// Actor identifies who performs a workflow operation.
type Actor struct {
	ID   string
	Role UserRole
}

// ActorFromClaims converts validated token claims into an Actor.
func ActorFromClaims(claims *JWTClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{ID: claims.UserID, Role: claims.Role}
}

// IsPrivileged reports whether the actor holds approval authority.
func (a Actor) IsPrivileged() bool {
	return a.Role == RoleAdministrator
}

// CanSchedule reports whether the actor may create or edit events.
func (a Actor) CanSchedule() bool {
	return a.Role == RoleAdministrator || a.Role == RoleTutor
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
