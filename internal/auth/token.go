package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/taskdesk/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenManager issues and verifies HS256 bearer tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption configures a TokenManager.
type TokenOption func(*TokenManager)

// WithClock replaces time.Now for issuing and verifying tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(tm *TokenManager) {
		tm.now = now
	}
}

// NewTokenManager creates a TokenManager whose tokens expire ttl after issue.
func NewTokenManager(secret string, ttl time.Duration, opts ...TokenOption) *TokenManager {
	tm := &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(tm)
	}
	return tm
}

// Issue signs a token carrying the account id and role.
func (tm *TokenManager) Issue(accountID, role string) (string, error) {
	now := tm.now()

	claims := &models.TokenClaims{
		AccountID: accountID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm and expiry. It returns
// models.ErrTokenExpired for an expired token and models.ErrTokenInvalid for
// anything else that fails.
func (tm *TokenManager) Verify(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return tm.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(tm.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", models.ErrTokenInvalid, err)
	}

	if claims.AccountID == "" {
		return nil, fmt.Errorf("%w: missing account id", models.ErrTokenInvalid)
	}
	return claims, nil
}
