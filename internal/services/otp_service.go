package services

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/BradenHooton/taskdesk/internal/auth"
	"github.com/BradenHooton/taskdesk/internal/models"
)

// OTPService issues and checks the six-digit codes used for email
// verification and password reset.
type OTPService struct {
	accounts AccountRepository
	outbox   OutboxRepository
	validity time.Duration
	now      func() time.Time
	generate func() (string, error)
}

// OTPOption configures an OTPService.
type OTPOption func(*OTPService)

// WithOTPClock replaces time.Now when stamping and checking expiry.
func WithOTPClock(now func() time.Time) OTPOption {
	return func(s *OTPService) {
		s.now = now
	}
}

// WithOTPGenerator replaces the random code source.
func WithOTPGenerator(generate func() (string, error)) OTPOption {
	return func(s *OTPService) {
		s.generate = generate
	}
}

func NewOTPService(accounts AccountRepository, outbox OutboxRepository, validity time.Duration, opts ...OTPOption) *OTPService {
	s := &OTPService{
		accounts: accounts,
		outbox:   outbox,
		validity: validity,
		now:      time.Now,
		generate: auth.GenerateOTP,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue stores a new code on account, replacing any pending one, and queues
// the email carrying it. Run it inside a transaction so the code and its
// message are written together. account is updated in place.
func (s *OTPService) Issue(ctx context.Context, account *models.Account, kind models.NotificationKind) (*models.OutboxMessage, error) {
	code, err := s.generate()
	if err != nil {
		return nil, err
	}
	expiresAt := s.now().Add(s.validity).UTC()

	if err := s.accounts.SetOTP(ctx, account.ID, code, expiresAt); err != nil {
		return nil, fmt.Errorf("store one-time code: %w", err)
	}
	account.OTPCode = &code
	account.OTPExpiresAt = &expiresAt

	msg := &models.OutboxMessage{
		AccountID:     account.ID,
		Email:         account.Email,
		Kind:          kind,
		Code:          code,
		CodeExpiresAt: expiresAt,
	}
	if err := s.outbox.Enqueue(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Check compares submitted against the pending code. Expiry is strict: a code
// submitted at exactly its expiry instant is still accepted.
func (s *OTPService) Check(account *models.Account, submitted string) error {
	if !account.HasPendingCode() {
		return models.ErrNoPendingCode
	}
	if s.now().After(*account.OTPExpiresAt) {
		return models.ErrExpiredCode
	}
	if subtle.ConstantTimeCompare([]byte(*account.OTPCode), []byte(submitted)) != 1 {
		return models.ErrCodeMismatch
	}
	return nil
}
