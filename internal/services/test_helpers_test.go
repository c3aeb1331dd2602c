package services

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/taskdesk/internal/models"
	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewTestAccount builds an account for tests.
func NewTestAccount(id, email string, status models.AccountStatus) *models.Account {
	now := time.Now()
	return &models.Account{
		ID:        id,
		Name:      "Test Account",
		Email:     email,
		Role:      models.RoleUser,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MockAccountRepository implements AccountRepository for testing
type MockAccountRepository struct {
	GetByIDFunc       func(ctx context.Context, id string) (*models.Account, error)
	GetByEmailFunc    func(ctx context.Context, email string) (*models.Account, error)
	CreateFunc        func(ctx context.Context, account *models.Account) (*models.Account, error)
	UpdateProfileFunc func(ctx context.Context, id, name, email string) (*models.Account, error)
	ApplyChangesFunc  func(ctx context.Context, id string, changes models.AccountChanges) (*models.Account, error)
	ListFunc          func(ctx context.Context, limit, offset int) ([]*models.Account, error)
	CountFunc         func(ctx context.Context) (int, error)
	SetOTPFunc        func(ctx context.Context, id, code string, expiresAt time.Time) error
	ConsumeOTPFunc    func(ctx context.Context, id, code string, status models.AccountStatus, passwordHash *string) (*models.Account, error)
	ActivateFunc      func(ctx context.Context, id string) (*models.Account, error)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrAccountNotFound
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrAccountNotFound
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) UpdateProfile(ctx context.Context, id, name, email string) (*models.Account, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, id, name, email)
	}
	return nil, models.ErrAccountNotFound
}

func (m *MockAccountRepository) ApplyChanges(ctx context.Context, id string, changes models.AccountChanges) (*models.Account, error) {
	if m.ApplyChangesFunc != nil {
		return m.ApplyChangesFunc(ctx, id, changes)
	}
	return nil, models.ErrAccountNotFound
}

func (m *MockAccountRepository) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.Account{}, nil
}

func (m *MockAccountRepository) Count(ctx context.Context) (int, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx)
	}
	return 0, nil
}

func (m *MockAccountRepository) SetOTP(ctx context.Context, id, code string, expiresAt time.Time) error {
	if m.SetOTPFunc != nil {
		return m.SetOTPFunc(ctx, id, code, expiresAt)
	}
	return nil
}

func (m *MockAccountRepository) ConsumeOTP(ctx context.Context, id, code string, status models.AccountStatus, passwordHash *string) (*models.Account, error) {
	if m.ConsumeOTPFunc != nil {
		return m.ConsumeOTPFunc(ctx, id, code, status, passwordHash)
	}
	return nil, models.ErrCodeMismatch
}

func (m *MockAccountRepository) Activate(ctx context.Context, id string) (*models.Account, error) {
	if m.ActivateFunc != nil {
		return m.ActivateFunc(ctx, id)
	}
	return nil, models.ErrAccountNotFound
}

// MockTaskRepository implements TaskRepository for testing
type MockTaskRepository struct {
	GetByIDFunc func(ctx context.Context, id string) (*models.Task, error)
	ListFunc    func(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error)
	CreateFunc  func(ctx context.Context, task *models.Task) (*models.Task, error)
	UpdateFunc  func(ctx context.Context, task *models.Task) (*models.Task, error)
	DeleteFunc  func(ctx context.Context, id string) error
}

func (m *MockTaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockTaskRepository) List(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return []*models.Task{}, nil
}

func (m *MockTaskRepository) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, task)
	}
	task.ID = "task-1"
	return task, nil
}

func (m *MockTaskRepository) Update(ctx context.Context, task *models.Task) (*models.Task, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, task)
	}
	return task, nil
}

func (m *MockTaskRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// inlineTransactor runs fn directly.
type inlineTransactor struct {
	calls int
}

func (t *inlineTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

// MockDispatcher records immediate delivery requests.
type MockDispatcher struct {
	mu            sync.Mutex
	delivered     []string
	DeliverNowErr error
}

func (m *MockDispatcher) DeliverNow(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered = append(m.delivered, id)
	return m.DeliverNowErr
}

// memOutbox is an in-memory OutboxRepository.
type memOutbox struct {
	mu       sync.Mutex
	messages []*models.OutboxMessage
	err      error
}

func (o *memOutbox) Enqueue(ctx context.Context, msg *models.OutboxMessage) error {
	if o.err != nil {
		return o.err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	msg.ID = uuid.New().String()
	o.messages = append(o.messages, msg)
	return nil
}

// last returns the most recent message sent to email.
func (o *memOutbox) last(email string) *models.OutboxMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.messages) - 1; i >= 0; i-- {
		if o.messages[i].Email == email {
			return o.messages[i]
		}
	}
	return nil
}

func (o *memOutbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.messages)
}

// memAccounts is an in-memory AccountRepository with the same column-scoped
// writes and conditional code consumption as the Postgres store.
type memAccounts struct {
	mu   sync.Mutex
	byID map[string]*models.Account

	// beforeWrite, when set, runs once ahead of the next write so a test can
	// land a competing change between a service's read and its write.
	beforeWrite func()
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: make(map[string]*models.Account)}
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	if a.OTPCode != nil {
		code := *a.OTPCode
		c.OTPCode = &code
	}
	if a.OTPExpiresAt != nil {
		exp := *a.OTPExpiresAt
		c.OTPExpiresAt = &exp
	}
	return &c
}

func (m *memAccounts) interleave() {
	m.mu.Lock()
	hook := m.beforeWrite
	m.beforeWrite = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (m *memAccounts) findEmail(email string) *models.Account {
	for _, a := range m.byID {
		if strings.EqualFold(a.Email, email) {
			return a
		}
	}
	return nil
}

func (m *memAccounts) GetByID(ctx context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

func (m *memAccounts) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.findEmail(email)
	if a == nil {
		return nil, models.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

func (m *memAccounts) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findEmail(account.Email) != nil {
		return nil, models.ErrDuplicateEmail
	}
	stored := cloneAccount(account)
	stored.ID = uuid.New().String()
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	m.byID[stored.ID] = stored
	return cloneAccount(stored), nil
}

func (m *memAccounts) UpdateProfile(ctx context.Context, id, name, email string) (*models.Account, error) {
	m.interleave()
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[id]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	if other := m.findEmail(email); other != nil && other.ID != id {
		return nil, models.ErrDuplicateEmail
	}
	stored.Name = name
	stored.Email = email
	stored.UpdatedAt = time.Now()
	return cloneAccount(stored), nil
}

func (m *memAccounts) ApplyChanges(ctx context.Context, id string, changes models.AccountChanges) (*models.Account, error) {
	m.interleave()
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[id]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	if changes.Email != nil {
		if other := m.findEmail(*changes.Email); other != nil && other.ID != id {
			return nil, models.ErrDuplicateEmail
		}
		stored.Email = *changes.Email
	}
	if changes.Name != nil {
		stored.Name = *changes.Name
	}
	if changes.Role != nil {
		stored.Role = *changes.Role
	}
	if changes.Status != nil {
		stored.Status = *changes.Status
	}
	stored.UpdatedAt = time.Now()
	return cloneAccount(stored), nil
}

// setStatus changes the lifecycle state directly, as an administrator would.
func (m *memAccounts) setStatus(id string, status models.AccountStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.byID[id]; ok {
		a.Status = status
	}
}

func (m *memAccounts) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Account, 0, len(m.byID))
	for _, a := range m.byID {
		out = append(out, cloneAccount(a))
	}
	return out, nil
}

func (m *memAccounts) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID), nil
}

func (m *memAccounts) SetOTP(ctx context.Context, id, code string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return models.ErrAccountNotFound
	}
	a.OTPCode = &code
	a.OTPExpiresAt = &expiresAt
	return nil
}

func (m *memAccounts) ConsumeOTP(ctx context.Context, id, code string, status models.AccountStatus, passwordHash *string) (*models.Account, error) {
	m.interleave()
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if ok && a.IsDeactivated() {
		return nil, models.ErrAccountDeactivated
	}
	if !ok || a.OTPCode == nil || *a.OTPCode != code {
		return nil, models.ErrCodeMismatch
	}
	a.OTPCode = nil
	a.OTPExpiresAt = nil
	a.Status = status
	if passwordHash != nil {
		a.PasswordHash = *passwordHash
	}
	return cloneAccount(a), nil
}

func (m *memAccounts) Activate(ctx context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok || a.IsDeactivated() {
		return nil, models.ErrAccountNotFound
	}
	a.Status = models.StatusActive
	a.OTPCode = nil
	a.OTPExpiresAt = nil
	return cloneAccount(a), nil
}

// testClock is a settable time source shared by the services under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
