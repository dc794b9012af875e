package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service. The
// dashboard has a single operator identity; there is no per-user model.
type Claims struct {
	jwt.RegisteredClaims

	Operator  string    `json:"operator"`
	TokenType TokenType `json:"token_type"`
}
