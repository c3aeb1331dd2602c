package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")
)

// Account lifecycle outcomes
var (
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrAccountNotFound     = errors.New("account not found")
	ErrAlreadyVerified     = errors.New("account already verified")
	ErrNoPendingCode       = errors.New("no pending one-time code")
	ErrExpiredCode         = errors.New("one-time code expired")
	ErrCodeMismatch        = errors.New("one-time code does not match")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrNotVerified         = errors.New("account not verified")
	ErrAccountDeactivated  = errors.New("account is deactivated")
	ErrPasswordTooShort    = errors.New("password too short")
	ErrProviderError       = errors.New("identity provider error")
	ErrNotificationFailure = errors.New("notification delivery failed")
	ErrSelfModification    = errors.New("administrators cannot deactivate or demote themselves")
)

// Token outcomes
var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)
