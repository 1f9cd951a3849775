package domain

import (
	"strings"
	"time"
)

const (
	RoleProducer = "PRODUCER"
	RoleAdmin    = "ADMIN"
)

// AuthClaims represents validated JWT claims
type AuthClaims struct {
	Subject   string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IsValidRole checks if the role is known
func IsValidRole(role string) bool {
	switch strings.ToUpper(role) {
	case RoleProducer, RoleAdmin:
		return true
	default:
		return false
	}
}

// AuthService defines JWT helpers used by the API
type AuthService interface {
	GenerateAccessToken(subject, role string) (string, error)
	ValidateToken(token string) (*AuthClaims, error)
}
