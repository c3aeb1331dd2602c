package services

import (
	"context"
	"time"

	"github.com/BradenHooton/taskdesk/internal/models"
)

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	UpdateProfile(ctx context.Context, id, name, email string) (*models.Account, error)
	ApplyChanges(ctx context.Context, id string, changes models.AccountChanges) (*models.Account, error)
	List(ctx context.Context, limit, offset int) ([]*models.Account, error)
	Count(ctx context.Context) (int, error)
	SetOTP(ctx context.Context, id, code string, expiresAt time.Time) error
	ConsumeOTP(ctx context.Context, id, code string, status models.AccountStatus, passwordHash *string) (*models.Account, error)
	Activate(ctx context.Context, id string) (*models.Account, error)
}

// OutboxRepository queues one-time-code emails for delivery.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg *models.OutboxMessage) error
}

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*models.Task, error)
	List(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error)
	Create(ctx context.Context, task *models.Task) (*models.Task, error)
	Update(ctx context.Context, task *models.Task) (*models.Task, error)
	Delete(ctx context.Context, id string) error
}

// Transactor runs fn in a transaction. Repositories called with the context
// passed to fn take part in it.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// NotificationDispatcher attempts immediate delivery of a queued message.
type NotificationDispatcher interface {
	DeliverNow(ctx context.Context, id string) error
}
