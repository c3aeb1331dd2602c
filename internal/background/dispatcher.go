package background

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/taskdesk/internal/config"
	"github.com/BradenHooton/taskdesk/internal/models"
	pkglogger "github.com/BradenHooton/taskdesk/pkg/logger"
)

const (
	baseRetryDelay = 30 * time.Second
	maxRetryDelay  = 30 * time.Minute
	claimLease     = 2 * time.Minute
	pruneInterval  = time.Hour
)

// OutboxStore is the persistence the dispatcher needs.
type OutboxStore interface {
	ClaimDue(ctx context.Context, now, leaseUntil time.Time, maxAttempts, limit int) ([]*models.OutboxMessage, error)
	ClaimByID(ctx context.Context, id string, now, leaseUntil time.Time) (*models.OutboxMessage, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id, reason string, nextAttemptAt time.Time) error
	Prune(ctx context.Context, cutoff time.Time, maxAttempts int) (int64, error)
}

// AccountLookup reads the account a message was issued for.
type AccountLookup interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
}

// Sender delivers a one-time code.
type Sender interface {
	SendOneTimeCode(ctx context.Context, to string, kind models.NotificationKind, code string, expiresAt time.Time) error
}

// Dispatcher delivers queued one-time-code emails at least once. Messages
// whose code is no longer the account's pending code are dropped.
type Dispatcher struct {
	outbox   OutboxStore
	accounts AccountLookup
	sender   Sender
	cfg      config.OutboxConfig
	logger   *slog.Logger
	now      func() time.Time

	lastPrune time.Time
	stopOnce  sync.Once
	stopCh    chan struct{}
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(outbox OutboxStore, accounts AccountLookup, sender Sender, cfg config.OutboxConfig, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		outbox:   outbox,
		accounts: accounts,
		sender:   sender,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start polls for due messages until ctx is cancelled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	d.logger.Info("notification dispatcher started", slog.Duration("interval", d.cfg.PollInterval))
	d.tick(ctx)

	for {
		select {
		case <-ticker.C:
			d.tick(ctx)
		case <-d.stopCh:
			d.logger.Info("notification dispatcher stopped")
			return
		case <-ctx.Done():
			d.logger.Info("notification dispatcher context cancelled")
			return
		}
	}
}

// Stop signals the dispatcher to stop
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
}

func (d *Dispatcher) tick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, claimLease)
	defer cancel()

	if _, err := d.DispatchDue(tickCtx); err != nil {
		d.logger.Error("failed to dispatch notifications", slog.Any("error", err))
	}

	if d.now().Sub(d.lastPrune) >= pruneInterval {
		d.prune(tickCtx)
	}
}

// DispatchDue sends one batch of due messages and reports how many were
// handled.
func (d *Dispatcher) DispatchDue(ctx context.Context) (int, error) {
	now := d.now()
	msgs, err := d.outbox.ClaimDue(ctx, now, now.Add(claimLease), d.cfg.MaxAttempts, d.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	for _, msg := range msgs {
		_ = d.process(ctx, msg)
	}
	return len(msgs), nil
}

// DeliverNow sends the message with id immediately if no other worker holds
// it. The message stays queued for retry when sending fails.
func (d *Dispatcher) DeliverNow(ctx context.Context, id string) error {
	now := d.now()
	msg, err := d.outbox.ClaimByID(ctx, id, now, now.Add(claimLease))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("claim notification: %w", err)
	}
	return d.process(ctx, msg)
}

func (d *Dispatcher) process(ctx context.Context, msg *models.OutboxMessage) error {
	log := d.logger.With(
		slog.String("message_id", msg.ID),
		slog.String("kind", string(msg.Kind)),
		slog.String("email", pkglogger.SanitizedEmail(msg.Email)),
	)

	if reason, stale, err := d.isStale(ctx, msg); err != nil {
		return d.fail(ctx, log, msg, err)
	} else if stale {
		log.Info("dropping stale notification", slog.String("reason", reason))
		return d.markDelivered(ctx, log, msg)
	}

	if err := d.sender.SendOneTimeCode(ctx, msg.Email, msg.Kind, msg.Code, msg.CodeExpiresAt); err != nil {
		return d.fail(ctx, log, msg, err)
	}

	log.Info("notification delivered", slog.Int("attempt", msg.Attempts+1))
	return d.markDelivered(ctx, log, msg)
}

// isStale reports whether msg no longer needs sending because its code was
// consumed, replaced or has expired, or the account is gone.
func (d *Dispatcher) isStale(ctx context.Context, msg *models.OutboxMessage) (string, bool, error) {
	if d.now().After(msg.CodeExpiresAt) {
		return "code_expired", true, nil
	}

	account, err := d.accounts.GetByID(ctx, msg.AccountID)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			return "account_missing", true, nil
		}
		return "", false, fmt.Errorf("load account: %w", err)
	}

	switch {
	case account.IsDeactivated():
		return "account_deactivated", true, nil
	case account.OTPCode == nil || *account.OTPCode != msg.Code:
		return "code_superseded", true, nil
	}
	return "", false, nil
}

func (d *Dispatcher) markDelivered(ctx context.Context, log *slog.Logger, msg *models.OutboxMessage) error {
	if err := d.outbox.MarkDelivered(ctx, msg.ID, d.now()); err != nil {
		log.Error("failed to mark notification delivered", slog.Any("error", err))
		return err
	}
	return nil
}

func (d *Dispatcher) fail(ctx context.Context, log *slog.Logger, msg *models.OutboxMessage, cause error) error {
	attempt := msg.Attempts + 1
	next := d.now().Add(RetryDelay(msg.Attempts))

	if attempt >= d.cfg.MaxAttempts {
		log.Error("notification abandoned", slog.Int("attempts", attempt), slog.Any("error", cause))
	} else {
		log.Warn("notification delivery failed", slog.Int("attempt", attempt), slog.Time("next_attempt_at", next), slog.Any("error", cause))
	}

	if err := d.outbox.MarkFailed(ctx, msg.ID, cause.Error(), next); err != nil {
		log.Error("failed to record delivery failure", slog.Any("error", err))
	}
	return cause
}

func (d *Dispatcher) prune(ctx context.Context) {
	d.lastPrune = d.now()

	removed, err := d.outbox.Prune(ctx, d.now().Add(-d.cfg.Retention), d.cfg.MaxAttempts)
	if err != nil {
		d.logger.Error("failed to prune notifications", slog.Any("error", err))
		return
	}
	if removed > 0 {
		d.logger.Info("notification outbox pruned", slog.Int64("rows_deleted", removed))
	}
}

// RetryDelay is the wait after the given number of previous failures:
// 30s doubled per failure, capped at 30 minutes.
func RetryDelay(previousAttempts int) time.Duration {
	delay := baseRetryDelay
	for i := 0; i < previousAttempts; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}
