package models

import (
	"time"
)

// NotificationKind identifies which email template an outbox message renders.
type NotificationKind string

const (
	NotificationVerification  NotificationKind = "verification"
	NotificationPasswordReset NotificationKind = "password_reset"
)

// OutboxMessage is a queued one-time-code email. It is written in the same
// transaction that issues the code and delivered at least once.
type OutboxMessage struct {
	ID            string
	AccountID     string
	Email         string
	Kind          NotificationKind
	Code          string
	CodeExpiresAt time.Time
	Attempts      int
	LastError     *string
	NextAttemptAt time.Time
	DeliveredAt   *time.Time
	CreatedAt     time.Time
}

// IsDelivered reports whether the message has been sent or superseded.
func (m *OutboxMessage) IsDelivered() bool {
	return m.DeliveredAt != nil
}
