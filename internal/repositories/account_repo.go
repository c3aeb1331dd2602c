package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/taskdesk/internal/database"
	"github.com/BradenHooton/taskdesk/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const accountColumns = `id, name, email, password_hash, role, status, otp_code, otp_expires_at, created_at, updated_at`

type AccountRepository struct {
	db *database.DB
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var a models.Account
	var passwordHash *string

	err := scanner.Scan(
		&a.ID, &a.Name, &a.Email, &passwordHash, &a.Role, &a.Status,
		&a.OTPCode, &a.OTPExpiresAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, mapAccountError(err)
	}

	if passwordHash != nil {
		a.PasswordHash = *passwordHash
	}
	return &a, nil
}

func scanAccountRows(rows pgx.Rows) ([]*models.Account, error) {
	defer rows.Close()

	accounts := make([]*models.Account, 0)
	for rows.Next() {
		a, err := scanAccountRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// mapAccountError narrows the generic database errors to account errors.
func mapAccountError(err error) error {
	err = database.MapPostgresError(err)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return models.ErrAccountNotFound
	case errors.Is(err, models.ErrConflict):
		return models.ErrDuplicateEmail
	}
	return err
}

func nullableHash(hash string) *string {
	if hash == "" {
		return nil
	}
	return &hash
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrAccountNotFound
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccountRow(r.db.Querier(ctx).QueryRow(ctx, query, id))
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email) = lower($1)`
	return scanAccountRow(r.db.Querier(ctx).QueryRow(ctx, query, email))
}

// Create inserts a new account. A taken email yields models.ErrDuplicateEmail
// and nothing is written.
func (r *AccountRepository) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	now := time.Now().UTC()
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Role == "" {
		a.Role = models.RoleUser
	}
	a.CreatedAt = now
	a.UpdatedAt = now

	query := `
		INSERT INTO accounts (id, name, email, password_hash, role, status, otp_code, otp_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + accountColumns

	return scanAccountRow(r.db.Querier(ctx).QueryRow(ctx, query,
		a.ID, a.Name, a.Email, nullableHash(a.PasswordHash), a.Role, a.Status,
		a.OTPCode, a.OTPExpiresAt, a.CreatedAt, a.UpdatedAt,
	))
}

// UpdateProfile writes only name and email.
func (r *AccountRepository) UpdateProfile(ctx context.Context, id, name, email string) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrAccountNotFound
	}

	query := `
		UPDATE accounts SET name = $2, email = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + accountColumns

	return scanAccountRow(r.db.Querier(ctx).QueryRow(ctx, query, id, name, email))
}

// ApplyChanges writes the non-nil fields of changes and leaves every other
// column as it is in the row.
func (r *AccountRepository) ApplyChanges(ctx context.Context, id string, changes models.AccountChanges) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrAccountNotFound
	}
	if changes.Status != nil && !changes.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown account status %q", models.ErrBadRequest, *changes.Status)
	}

	query := `
		UPDATE accounts
		SET name = COALESCE($2, name), email = COALESCE($3, email),
		    role = COALESCE($4, role), status = COALESCE($5, status), updated_at = NOW()
		WHERE id = $1
		RETURNING ` + accountColumns

	return scanAccountRow(r.db.Querier(ctx).QueryRow(ctx, query,
		id, changes.Name, changes.Email, changes.Role, changes.Status,
	))
}

func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Querier(ctx).Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	return scanAccountRows(rows)
}

func (r *AccountRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Querier(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}

// SetOTP stores a freshly issued code, replacing any code already pending.
func (r *AccountRepository) SetOTP(ctx context.Context, id, code string, expiresAt time.Time) error {
	query := `UPDATE accounts SET otp_code = $2, otp_expires_at = $3, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Querier(ctx).Exec(ctx, query, id, code, expiresAt)
	if err != nil {
		return mapAccountError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrAccountNotFound
	}
	return nil
}

// ConsumeOTP clears the pending code and moves the account to status in one
// statement, replacing the password hash when one is given. It only matches
// while code is still the pending one and the account is not deactivated, so
// a code is consumed at most once, a superseded code yields
// models.ErrCodeMismatch and a deactivation that lands first wins with
// models.ErrAccountDeactivated.
func (r *AccountRepository) ConsumeOTP(ctx context.Context, id, code string, status models.AccountStatus, passwordHash *string) (*models.Account, error) {
	query := `
		UPDATE accounts
		SET otp_code = NULL, otp_expires_at = NULL, status = $3,
		    password_hash = COALESCE($4, password_hash), updated_at = NOW()
		WHERE id = $1 AND otp_code = $2 AND status <> 'deactivated'
		RETURNING ` + accountColumns

	a, err := scanAccountRow(r.db.Querier(ctx).QueryRow(ctx, query, id, code, status, passwordHash))
	if !errors.Is(err, models.ErrAccountNotFound) {
		return a, err
	}

	current, _, statusErr := r.Status(ctx, id)
	if statusErr == nil && current == models.StatusDeactivated {
		return nil, models.ErrAccountDeactivated
	}
	return nil, models.ErrCodeMismatch
}

// Activate marks a pending account active and drops any pending code. Used
// when a federated provider vouches for the address.
func (r *AccountRepository) Activate(ctx context.Context, id string) (*models.Account, error) {
	query := `
		UPDATE accounts
		SET status = 'active', otp_code = NULL, otp_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status <> 'deactivated'
		RETURNING ` + accountColumns

	return scanAccountRow(r.db.Querier(ctx).QueryRow(ctx, query, id))
}

// Status reports only the lifecycle state, for per-request token admission.
func (r *AccountRepository) Status(ctx context.Context, id string) (models.AccountStatus, string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", "", models.ErrAccountNotFound
	}

	var status models.AccountStatus
	var role string
	err := r.db.Querier(ctx).QueryRow(ctx, `SELECT status, role FROM accounts WHERE id = $1`, id).Scan(&status, &role)
	if err != nil {
		return "", "", mapAccountError(err)
	}
	return status, role, nil
}
