package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the payload of a bearer token.
type TokenClaims struct {
	AccountID string `json:"id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// FederatedProfile is the identity an OAuth provider vouches for.
type FederatedProfile struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	DisplayName   string
}
