package auth

import (
	"github.com/edurewards/edurewards-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID string
	Role   enums.Role
	// SchoolID scopes teachers to the classrooms they verify for. Optional.
	SchoolID string
	JTI      string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID   string     `json:"user_id"`
	Role     enums.Role `json:"role"`
	SchoolID string     `json:"school_id,omitempty"`
	jwt.RegisteredClaims
}
