package auth

import (
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID int64
	Role   enums.ActorRole
	JTI    string
}

// AccessTokenClaims represents the typed JWT presented by callers.
type AccessTokenClaims struct {
	UserID int64           `json:"user_id"`
	Role   enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the caller may act on resources they do not own.
func (c *AccessTokenClaims) IsAdmin() bool {
	return c != nil && c.Role == enums.ActorRoleAdmin
}
