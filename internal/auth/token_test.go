package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/taskdesk/internal/auth"
	"github.com/BradenHooton/taskdesk/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-0123456789abcdef0123"

// clock is a settable time source.
type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func TestTokenManager_IssueAndVerify(t *testing.T) {
	tm := auth.NewTokenManager(testSecret, 24*time.Hour)

	token, err := tm.Issue("acc-1", models.RoleAdmin)
	require.NoError(t, err)

	claims, err := tm.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.AccountID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.ID)
	require.NotNil(t, claims.ExpiresAt)
	require.NotNil(t, claims.IssuedAt)
	assert.Equal(t, 24*time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestTokenManager_ValidityWindow(t *testing.T) {
	c := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	tm := auth.NewTokenManager(testSecret, 24*time.Hour, auth.WithClock(c.Now))

	token, err := tm.Issue("acc-1", models.RoleUser)
	require.NoError(t, err)

	issued := c.now

	c.now = issued.Add(23*time.Hour + 59*time.Minute)
	_, err = tm.Verify(token)
	assert.NoError(t, err)

	c.now = issued.Add(24*time.Hour + time.Minute)
	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, models.ErrTokenExpired)
}

func TestTokenManager_UniqueTokenIDs(t *testing.T) {
	tm := auth.NewTokenManager(testSecret, time.Hour)

	a, err := tm.Issue("acc-1", models.RoleUser)
	require.NoError(t, err)
	b, err := tm.Issue("acc-1", models.RoleUser)
	require.NoError(t, err)

	ca, err := tm.Verify(a)
	require.NoError(t, err)
	cb, err := tm.Verify(b)
	require.NoError(t, err)
	assert.NotEqual(t, ca.ID, cb.ID)
}

func TestTokenManager_RejectsInvalidTokens(t *testing.T) {
	tm := auth.NewTokenManager(testSecret, time.Hour)
	other := auth.NewTokenManager("another-secret-0123456789abcdef", time.Hour)

	foreign, err := other.Issue("acc-1", models.RoleUser)
	require.NoError(t, err)

	valid, err := tm.Issue("acc-1", models.RoleUser)
	require.NoError(t, err)
	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"id":  "acc-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noAccount, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "user",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", foreign},
		{"tampered payload", tampered},
		{"none algorithm", noneToken},
		{"missing account id", noAccount},
		{"garbage", "not-a-token"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tm.Verify(tt.token)
			assert.ErrorIs(t, err, models.ErrTokenInvalid)
		})
	}
}
