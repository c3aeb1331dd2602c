package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/taskdesk/internal/database"
	"github.com/BradenHooton/taskdesk/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// The assignee is joined only while the account is active, so unverified and
// deactivated assignees read back as unresolved.
const taskSelect = `
	SELECT t.id, t.title, t.description, t.deadline, t.assigned_to, t.status, t.created_by,
	       t.created_at, t.updated_at, a.id, a.name, a.email
	FROM tasks t
	LEFT JOIN accounts a ON a.id = t.assigned_to AND a.status = 'active'`

// taskOrder whitelists the sortable columns. Anything else sorts by deadline.
var taskOrder = map[string]string{
	"deadline":  "t.deadline ASC NULLS LAST, t.created_at ASC",
	"title":     "t.title ASC",
	"status":    "t.status ASC",
	"createdAt": "t.created_at ASC",
}

type TaskRepository struct {
	db *database.DB
}

func NewTaskRepository(db *database.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func scanTaskRow(scanner rowScanner) (*models.Task, error) {
	var t models.Task
	var assigneeID, assigneeName, assigneeEmail *string

	err := scanner.Scan(
		&t.ID, &t.Title, &t.Description, &t.Deadline, &t.AssignedTo, &t.Status, &t.CreatedBy,
		&t.CreatedAt, &t.UpdatedAt, &assigneeID, &assigneeName, &assigneeEmail,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if assigneeID != nil {
		t.Assignee = &models.TaskAssignee{ID: *assigneeID, Name: *assigneeName, Email: *assigneeEmail}
	}
	return &t, nil
}

func scanTaskRows(rows pgx.Rows) ([]*models.Task, error) {
	defer rows.Close()

	tasks := make([]*models.Task, 0)
	for rows.Next() {
		t, err := scanTaskRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}
	return scanTaskRow(r.db.Querier(ctx).QueryRow(ctx, taskSelect+` WHERE t.id = $1`, id))
}

func (r *TaskRepository) List(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error) {
	var conds []string
	var args []any

	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+escapeLike(s)+"%")
		conds = append(conds, fmt.Sprintf("t.title ILIKE $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("t.status = $%d", len(args)))
	}

	query := taskSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	order, ok := taskOrder[filter.SortBy]
	if !ok {
		order = taskOrder["deadline"]
	}
	query += " ORDER BY " + order

	rows, err := r.db.Querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	return scanTaskRows(rows)
}

// Create inserts t and returns it with the assignee resolved.
func (r *TaskRepository) Create(ctx context.Context, t *models.Task) (*models.Task, error) {
	now := time.Now().UTC()
	t.ID = uuid.New().String()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = models.TaskStatusPending
	}

	query := `
		INSERT INTO tasks (id, title, description, deadline, assigned_to, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Querier(ctx).Exec(ctx, query,
		t.ID, t.Title, t.Description, t.Deadline, t.AssignedTo, t.Status, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return r.GetByID(ctx, t.ID)
}

func (r *TaskRepository) Update(ctx context.Context, t *models.Task) (*models.Task, error) {
	query := `
		UPDATE tasks
		SET title = $2, description = $3, deadline = $4, assigned_to = $5, status = $6, updated_at = NOW()
		WHERE id = $1`

	tag, err := r.db.Querier(ctx).Exec(ctx, query, t.ID, t.Title, t.Description, t.Deadline, t.AssignedTo, t.Status)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return nil, models.ErrNotFound
	}
	return r.GetByID(ctx, t.ID)
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return models.ErrNotFound
	}

	tag, err := r.db.Querier(ctx).Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
