package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/taskdesk/internal/database"
	"github.com/BradenHooton/taskdesk/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const outboxColumns = `id, account_id, email, kind, code, code_expires_at, attempts, last_error, next_attempt_at, delivered_at, created_at`

// OutboxRepository persists pending one-time-code emails.
type OutboxRepository struct {
	db *database.DB
}

func NewOutboxRepository(db *database.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func scanOutboxRow(scanner rowScanner) (*models.OutboxMessage, error) {
	var m models.OutboxMessage
	err := scanner.Scan(
		&m.ID, &m.AccountID, &m.Email, &m.Kind, &m.Code, &m.CodeExpiresAt,
		&m.Attempts, &m.LastError, &m.NextAttemptAt, &m.DeliveredAt, &m.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &m, nil
}

func scanOutboxRows(rows pgx.Rows) ([]*models.OutboxMessage, error) {
	defer rows.Close()

	msgs := make([]*models.OutboxMessage, 0)
	for rows.Next() {
		m, err := scanOutboxRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox messages: %w", err)
	}
	return msgs, nil
}

// Enqueue stores msg as immediately due. Call it in the transaction that
// issued the code.
func (r *OutboxRepository) Enqueue(ctx context.Context, msg *models.OutboxMessage) error {
	now := time.Now().UTC()
	msg.ID = uuid.New().String()
	msg.NextAttemptAt = now
	msg.CreatedAt = now

	query := `
		INSERT INTO notification_outbox (id, account_id, email, kind, code, code_expires_at, next_attempt_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Querier(ctx).Exec(ctx, query,
		msg.ID, msg.AccountID, msg.Email, msg.Kind, msg.Code, msg.CodeExpiresAt, msg.NextAttemptAt, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", database.MapPostgresError(err))
	}
	return nil
}

func (r *OutboxRepository) GetByID(ctx context.Context, id string) (*models.OutboxMessage, error) {
	query := `SELECT ` + outboxColumns + ` FROM notification_outbox WHERE id = $1`
	return scanOutboxRow(r.db.Querier(ctx).QueryRow(ctx, query, id))
}

// ClaimDue leases up to limit undelivered messages that are due, pushing their
// next attempt to leaseUntil so other dispatchers skip them. Rows locked by a
// concurrent claim are skipped.
func (r *OutboxRepository) ClaimDue(ctx context.Context, now, leaseUntil time.Time, maxAttempts, limit int) ([]*models.OutboxMessage, error) {
	query := `
		UPDATE notification_outbox SET next_attempt_at = $2
		WHERE id IN (
			SELECT id FROM notification_outbox
			WHERE delivered_at IS NULL AND next_attempt_at <= $1 AND attempts < $3
			ORDER BY next_attempt_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + outboxColumns

	rows, err := r.db.Querier(ctx).Query(ctx, query, now, leaseUntil, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox messages: %w", err)
	}
	return scanOutboxRows(rows)
}

// ClaimByID leases a single message if it is still due. It returns
// models.ErrNotFound when the message is delivered or held by another claim.
func (r *OutboxRepository) ClaimByID(ctx context.Context, id string, now, leaseUntil time.Time) (*models.OutboxMessage, error) {
	query := `
		UPDATE notification_outbox SET next_attempt_at = $3
		WHERE id = $1 AND delivered_at IS NULL AND next_attempt_at <= $2
		RETURNING ` + outboxColumns

	return scanOutboxRow(r.db.Querier(ctx).QueryRow(ctx, query, id, now, leaseUntil))
}

func (r *OutboxRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Querier(ctx).Exec(ctx,
		`UPDATE notification_outbox SET delivered_at = $2, last_error = NULL WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark notification delivered: %w", err)
	}
	return nil
}

// MarkFailed records a failed attempt and schedules the next one.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id, reason string, nextAttemptAt time.Time) error {
	query := `
		UPDATE notification_outbox
		SET attempts = attempts + 1, last_error = $2, next_attempt_at = $3
		WHERE id = $1`

	if _, err := r.db.Querier(ctx).Exec(ctx, query, id, reason, nextAttemptAt); err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	return nil
}

// Prune removes messages delivered before cutoff and abandoned messages
// created before cutoff.
func (r *OutboxRepository) Prune(ctx context.Context, cutoff time.Time, maxAttempts int) (int64, error) {
	query := `
		DELETE FROM notification_outbox
		WHERE (delivered_at IS NOT NULL AND delivered_at < $1)
		   OR (delivered_at IS NULL AND attempts >= $2 AND created_at < $1)`

	tag, err := r.db.Querier(ctx).Exec(ctx, query, cutoff, maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("prune notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}
