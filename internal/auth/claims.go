package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// Group isolation invariant: GroupID must be present for all member activity;
// every call endpoint is scoped to the caller's family group.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	GroupID   string    `json:"group_id"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}
