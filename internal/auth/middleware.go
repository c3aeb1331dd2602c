package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/BradenHooton/taskdesk/internal/models"
	pkghttp "github.com/BradenHooton/taskdesk/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// ClaimsContextKey is the key for storing token claims in context
	ClaimsContextKey contextKey = "claims"
)

// AccountStatusChecker reports the current lifecycle state and role of an
// account.
type AccountStatusChecker interface {
	Status(ctx context.Context, id string) (models.AccountStatus, string, error)
}

// Authenticate admits requests carrying a valid bearer token for an account
// that is not deactivated and stores the claims in the request context.
func Authenticate(tm *TokenManager, accounts AccountStatusChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "Missing or malformed authorization header")
				return
			}

			claims, err := tm.Verify(tokenString)
			if err != nil {
				if errors.Is(err, models.ErrTokenExpired) {
					pkghttp.WriteError(w, http.StatusUnauthorized, "token_expired", "Token has expired")
					return
				}
				pkghttp.WriteUnauthorized(w, "Invalid token")
				return
			}

			status, _, err := accounts.Status(r.Context(), claims.AccountID)
			if err != nil {
				if errors.Is(err, models.ErrAccountNotFound) {
					pkghttp.WriteUnauthorized(w, "Invalid token")
					return
				}
				pkghttp.WriteInternalError(w, "Unable to verify account")
				return
			}
			if status == models.StatusDeactivated {
				pkghttp.WriteUnauthorized(w, "Account is deactivated")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose account does not currently hold role.
// The role is re-read from the store so demotions take effect immediately.
func RequireRole(accounts AccountStatusChecker, role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromContext(r)
			if claims == nil {
				pkghttp.WriteUnauthorized(w, "Unauthorized")
				return
			}

			_, currentRole, err := accounts.Status(r.Context(), claims.AccountID)
			if err != nil {
				if errors.Is(err, models.ErrAccountNotFound) {
					pkghttp.WriteUnauthorized(w, "Unauthorized")
					return
				}
				pkghttp.WriteInternalError(w, "Unable to verify account")
				return
			}

			if currentRole != role {
				pkghttp.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetClaimsFromContext extracts token claims from the request context
func GetClaimsFromContext(r *http.Request) *models.TokenClaims {
	claims, ok := r.Context().Value(ClaimsContextKey).(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
