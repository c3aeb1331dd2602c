package models

import (
	"time"
)

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	StatusPendingVerification AccountStatus = "pending_verification"
	StatusActive              AccountStatus = "active"
	StatusDeactivated         AccountStatus = "deactivated"
)

// Valid reports whether s is a known lifecycle state.
func (s AccountStatus) Valid() bool {
	switch s {
	case StatusPendingVerification, StatusActive, StatusDeactivated:
		return true
	}
	return false
}

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string // empty for OAuth-only accounts
	Role         string
	Status       AccountStatus
	OTPCode      *string
	OTPExpiresAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsActive reports whether the account may authenticate.
func (a *Account) IsActive() bool {
	return a.Status == StatusActive
}

// IsDeactivated reports whether the account was soft-deleted by an administrator.
func (a *Account) IsDeactivated() bool {
	return a.Status == StatusDeactivated
}

// HasPendingCode reports whether a one-time code is waiting to be consumed.
func (a *Account) HasPendingCode() bool {
	return a.OTPCode != nil && a.OTPExpiresAt != nil
}

// HasPassword is false for accounts created through federated login.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != ""
}

// AccountPatch carries the optional fields of an administrative edit.
type AccountPatch struct {
	Name     *string
	Email    *string
	Role     *string
	IsActive *bool
}

// AccountChanges lists the columns an administrative write touches. Nil
// fields keep their stored value.
type AccountChanges struct {
	Name   *string
	Email  *string
	Role   *string
	Status *AccountStatus
}
