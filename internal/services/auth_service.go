package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/taskdesk/internal/auth"
	"github.com/BradenHooton/taskdesk/internal/models"
	pkgauth "github.com/BradenHooton/taskdesk/pkg/auth"
	pkglogger "github.com/BradenHooton/taskdesk/pkg/logger"
)

// RegisterInput carries a self-registration request.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// LoginResult is returned by password and federated login.
type LoginResult struct {
	Token   string
	Account *models.Account
}

// AuthService drives the account lifecycle: registration, verification,
// login and password reset.
type AuthService struct {
	accounts   AccountRepository
	otp        *OTPService
	tx         Transactor
	dispatcher NotificationDispatcher
	tm         *auth.TokenManager
	timing     *auth.TimingDelay
	logger     *slog.Logger
	audit      *pkglogger.AuditLogger

	allowAdminSelfRegistration bool
}

// NewAuthService creates a new AuthService
func NewAuthService(
	accounts AccountRepository,
	otp *OTPService,
	tx Transactor,
	dispatcher NotificationDispatcher,
	tm *auth.TokenManager,
	timing *auth.TimingDelay,
	logger *slog.Logger,
	audit *pkglogger.AuditLogger,
	allowAdminSelfRegistration bool,
) *AuthService {
	return &AuthService{
		accounts:                   accounts,
		otp:                        otp,
		tx:                         tx,
		dispatcher:                 dispatcher,
		tm:                         tm,
		timing:                     timing,
		logger:                     logger,
		audit:                      audit,
		allowAdminSelfRegistration: allowAdminSelfRegistration,
	}
}

// NormalizeEmail trims and lower-cases an address so lookups and the unique
// index agree.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a pending account, issues a verification code and queues
// the email in one transaction, then tries to deliver it. A failed delivery
// leaves the message queued for retry and does not fail registration.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.Account, error) {
	name := strings.TrimSpace(in.Name)
	email := NormalizeEmail(in.Email)
	if name == "" || email == "" {
		return nil, fmt.Errorf("%w: name and email are required", models.ErrBadRequest)
	}
	if err := s.checkPassword(in.Password); err != nil {
		return nil, err
	}

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		s.audit.Record(ctx, pkglogger.AuditEvent{Action: "register", Email: email, Reason: "duplicate_email"})
		return nil, models.ErrDuplicateEmail
	} else if !errors.Is(err, models.ErrAccountNotFound) {
		return nil, fmt.Errorf("look up account: %w", err)
	}

	hash, err := pkgauth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	role := models.RoleUser
	if in.Role == models.RoleAdmin {
		if s.allowAdminSelfRegistration {
			role = models.RoleAdmin
		} else {
			s.logger.Warn("admin self-registration refused, registering as user",
				slog.String("email", pkglogger.SanitizedEmail(email)))
		}
	}

	var account *models.Account
	var msg *models.OutboxMessage
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		created, err := s.accounts.Create(ctx, &models.Account{
			Name:         name,
			Email:        email,
			PasswordHash: hash,
			Role:         role,
			Status:       models.StatusPendingVerification,
		})
		if err != nil {
			return err
		}
		msg, err = s.otp.Issue(ctx, created, models.NotificationVerification)
		account = created
		return err
	})
	if err != nil {
		if errors.Is(err, models.ErrDuplicateEmail) {
			return nil, models.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("register account: %w", err)
	}

	s.audit.Record(ctx, pkglogger.AuditEvent{
		Action: "register", AccountID: account.ID, Email: email, Success: true,
		Metadata: map[string]string{"role": role},
	})
	s.deliver(ctx, msg)
	return account, nil
}

// VerifyOTP activates a pending account when code matches its unexpired
// verification code. The code is consumed atomically with the activation.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) error {
	account, err := s.accounts.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}

	fail := func(err error, reason string) error {
		s.audit.Record(ctx, pkglogger.AuditEvent{Action: "verify_otp", AccountID: account.ID, Reason: reason})
		return err
	}

	switch {
	case account.IsDeactivated():
		return fail(models.ErrAccountDeactivated, "deactivated")
	case !account.HasPendingCode():
		return fail(models.ErrNoPendingCode, "no_pending_code")
	case account.IsActive():
		return fail(models.ErrAlreadyVerified, "already_verified")
	}

	if err := s.otp.Check(account, code); err != nil {
		return fail(err, codeFailureReason(err))
	}

	if _, err := s.accounts.ConsumeOTP(ctx, account.ID, code, models.StatusActive, nil); err != nil {
		if errors.Is(err, models.ErrCodeMismatch) {
			return fail(err, "code_superseded")
		}
		if errors.Is(err, models.ErrAccountDeactivated) {
			return fail(err, "deactivated")
		}
		return fmt.Errorf("activate account: %w", err)
	}

	s.audit.Record(ctx, pkglogger.AuditEvent{Action: "verify_otp", AccountID: account.ID, Success: true})
	return nil
}

// Login checks a password and issues a token. Unknown emails, wrong
// passwords and password-less accounts all return
// models.ErrInvalidCredentials after the same padded delay.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	start := time.Now()

	account, err := s.accounts.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, models.ErrAccountNotFound) {
			return nil, fmt.Errorf("look up account: %w", err)
		}
		_ = pkgauth.ComparePassword("", password)
		return nil, s.loginFailed(ctx, start, "", models.ErrInvalidCredentials, "unknown_email")
	}

	if account.Status == models.StatusPendingVerification {
		return nil, s.loginFailed(ctx, start, account.ID, models.ErrNotVerified, "not_verified")
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, s.loginFailed(ctx, start, account.ID, models.ErrInvalidCredentials, "invalid_password")
	}

	if account.IsDeactivated() {
		return nil, s.loginFailed(ctx, start, account.ID, models.ErrAccountDeactivated, "deactivated")
	}

	token, err := s.tm.Issue(account.ID, account.Role)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, pkglogger.AuditEvent{Action: "login", AccountID: account.ID, Success: true})
	return &LoginResult{Token: token, Account: account}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, start time.Time, accountID string, err error, reason string) error {
	s.audit.Record(ctx, pkglogger.AuditEvent{Action: "login", AccountID: accountID, Reason: reason})
	s.timing.PadFrom(ctx, start)
	return err
}

// FederatedLogin signs in the account matching a provider-verified email,
// creating an active password-less account on first sight. A pending account
// is activated since the provider has proven ownership of the address.
func (s *AuthService) FederatedLogin(ctx context.Context, profile models.FederatedProfile) (*LoginResult, error) {
	email := NormalizeEmail(profile.Email)
	if email == "" || !profile.EmailVerified {
		s.audit.Record(ctx, pkglogger.AuditEvent{
			Action: "federated_login", Reason: "unverified_provider_email",
			Metadata: map[string]string{"provider": profile.Provider},
		})
		return nil, models.ErrProviderError
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, models.ErrAccountNotFound):
		name := strings.TrimSpace(profile.DisplayName)
		if name == "" {
			name, _, _ = strings.Cut(email, "@")
		}
		account, err = s.accounts.Create(ctx, &models.Account{
			Name:   name,
			Email:  email,
			Role:   models.RoleUser,
			Status: models.StatusActive,
		})
		if errors.Is(err, models.ErrDuplicateEmail) {
			// Lost a race with a concurrent first login; use the winner.
			account, err = s.accounts.GetByEmail(ctx, email)
		}
		if err != nil {
			return nil, fmt.Errorf("create federated account: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("look up account: %w", err)
	}

	switch account.Status {
	case models.StatusDeactivated:
		s.audit.Record(ctx, pkglogger.AuditEvent{Action: "federated_login", AccountID: account.ID, Reason: "deactivated"})
		return nil, models.ErrAccountDeactivated
	case models.StatusPendingVerification:
		account, err = s.accounts.Activate(ctx, account.ID)
		if err != nil {
			return nil, fmt.Errorf("activate account: %w", err)
		}
	}

	token, err := s.tm.Issue(account.ID, account.Role)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, pkglogger.AuditEvent{
		Action: "federated_login", AccountID: account.ID, Success: true,
		Metadata: map[string]string{"provider": profile.Provider},
	})
	return &LoginResult{Token: token, Account: account}, nil
}

// ForgotPassword issues a password reset code. Unknown and deactivated
// addresses are ignored so the response never reveals whether an account
// exists.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	start := time.Now()
	email = NormalizeEmail(email)

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			s.audit.Record(ctx, pkglogger.AuditEvent{Action: "password_reset_request", Email: email, Reason: "unknown_email"})
			s.timing.PadFrom(ctx, start)
			return nil
		}
		return fmt.Errorf("look up account: %w", err)
	}
	if account.IsDeactivated() {
		s.audit.Record(ctx, pkglogger.AuditEvent{Action: "password_reset_request", AccountID: account.ID, Reason: "deactivated"})
		s.timing.PadFrom(ctx, start)
		return nil
	}

	var msg *models.OutboxMessage
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		msg, err = s.otp.Issue(ctx, account, models.NotificationPasswordReset)
		return err
	})
	if err != nil {
		return fmt.Errorf("issue reset code: %w", err)
	}

	s.audit.Record(ctx, pkglogger.AuditEvent{Action: "password_reset_request", AccountID: account.ID, Success: true})
	s.deliver(ctx, msg)
	return nil
}

// ResetPassword replaces the password when code matches the pending reset
// code. The code is consumed and the account left active.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if err := s.checkPassword(newPassword); err != nil {
		return err
	}

	account, err := s.accounts.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}

	fail := func(err error, reason string) error {
		s.audit.Record(ctx, pkglogger.AuditEvent{Action: "password_reset", AccountID: account.ID, Reason: reason})
		return err
	}

	if account.IsDeactivated() {
		return fail(models.ErrAccountDeactivated, "deactivated")
	}
	if err := s.otp.Check(account, code); err != nil {
		return fail(err, codeFailureReason(err))
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if _, err := s.accounts.ConsumeOTP(ctx, account.ID, code, models.StatusActive, &hash); err != nil {
		if errors.Is(err, models.ErrCodeMismatch) {
			return fail(err, "code_superseded")
		}
		if errors.Is(err, models.ErrAccountDeactivated) {
			return fail(err, "deactivated")
		}
		return fmt.Errorf("reset password: %w", err)
	}

	s.audit.Record(ctx, pkglogger.AuditEvent{Action: "password_reset", AccountID: account.ID, Success: true})
	return nil
}

func (s *AuthService) checkPassword(password string) error {
	switch err := pkgauth.ValidatePassword(password); {
	case err == nil:
		return nil
	case errors.Is(err, pkgauth.ErrPasswordTooShort):
		return models.ErrPasswordTooShort
	default:
		return fmt.Errorf("%w: %v", models.ErrBadRequest, err)
	}
}

// deliver attempts immediate delivery of msg. Failures are logged; the
// dispatcher retries the queued message.
func (s *AuthService) deliver(ctx context.Context, msg *models.OutboxMessage) {
	if s.dispatcher == nil || msg == nil {
		return
	}
	if err := s.dispatcher.DeliverNow(ctx, msg.ID); err != nil {
		s.logger.Warn("immediate delivery failed, message left queued",
			slog.String("message_id", msg.ID),
			slog.String("kind", string(msg.Kind)),
			slog.Any("error", err))
	}
}

func codeFailureReason(err error) string {
	switch {
	case errors.Is(err, models.ErrNoPendingCode):
		return "no_pending_code"
	case errors.Is(err, models.ErrExpiredCode):
		return "expired_code"
	case errors.Is(err, models.ErrCodeMismatch):
		return "code_mismatch"
	}
	return "error"
}
