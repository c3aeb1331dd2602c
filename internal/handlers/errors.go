package handlers

import (
	"errors"
	"net/http"

	"github.com/BradenHooton/taskdesk/internal/models"
	pkghttp "github.com/BradenHooton/taskdesk/pkg/http"
)

// lifecycleErrors maps account lifecycle outcomes to their API error codes.
// All of them are client errors reported as 400.
var lifecycleErrors = []struct {
	err     error
	code    string
	message string
}{
	{models.ErrDuplicateEmail, "duplicate_email", "An account with this email already exists"},
	{models.ErrAccountNotFound, "account_not_found", "No account exists for this email"},
	{models.ErrAlreadyVerified, "already_verified", "Account is already verified"},
	{models.ErrNoPendingCode, "no_pending_code", "No code is pending for this account"},
	{models.ErrExpiredCode, "expired_code", "The code has expired, request a new one"},
	{models.ErrCodeMismatch, "code_mismatch", "The code is incorrect"},
	{models.ErrInvalidCredentials, "invalid_credentials", "Invalid email or password"},
	{models.ErrNotVerified, "not_verified", "Please verify your email before logging in"},
	{models.ErrPasswordTooShort, "password_too_short", "Password must be at least 6 characters"},
	{models.ErrAccountDeactivated, "account_deactivated", "This account has been deactivated"},
}

// writeLifecycleError renders an AuthService error. Unknown errors become a
// 500 without detail.
func writeLifecycleError(w http.ResponseWriter, err error) {
	for _, e := range lifecycleErrors {
		if errors.Is(err, e.err) {
			pkghttp.WriteError(w, http.StatusBadRequest, e.code, e.message)
			return
		}
	}
	if errors.Is(err, models.ErrBadRequest) {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	pkghttp.WriteInternalError(w, "Internal server error")
}

// writeResourceError renders errors from the profile, admin and task
// services using the generic status codes.
func writeResourceError(w http.ResponseWriter, err error, notFound string) {
	switch {
	case errors.Is(err, models.ErrAccountNotFound), errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, notFound)
	case errors.Is(err, models.ErrDuplicateEmail):
		pkghttp.WriteConflict(w, "An account with this email already exists")
	case errors.Is(err, models.ErrSelfModification):
		pkghttp.WriteBadRequest(w, "You cannot deactivate or demote your own account")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, err.Error())
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
