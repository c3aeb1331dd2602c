package services

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/taskdesk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskService_Create(t *testing.T) {
	accounts := &MockAccountRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			switch id {
			case "worker":
				return NewTestAccount(id, "w@x.com", models.StatusActive), nil
			case "gone":
				return NewTestAccount(id, "g@x.com", models.StatusDeactivated), nil
			case "unverified":
				return NewTestAccount(id, "u@x.com", models.StatusPendingVerification), nil
			}
			return nil, models.ErrAccountNotFound
		},
	}
	var created *models.Task
	tasks := &MockTaskRepository{
		CreateFunc: func(ctx context.Context, task *models.Task) (*models.Task, error) {
			task.ID = "task-1"
			created = task
			return task, nil
		},
	}
	svc := NewTaskService(tasks, accounts, testLogger())
	ctx := context.Background()

	task, err := svc.Create(ctx, "owner", TaskInput{Title: " Write report ", AssignedTo: ptr("worker")})
	require.NoError(t, err)
	assert.Equal(t, "task-1", task.ID)
	assert.Equal(t, "Write report", created.Title)
	assert.Equal(t, models.TaskStatusPending, created.Status)
	assert.Equal(t, "owner", created.CreatedBy)

	tests := []struct {
		name string
		in   TaskInput
	}{
		{"missing title", TaskInput{Title: "  "}},
		{"unknown status", TaskInput{Title: "x", Status: "Blocked"}},
		{"unknown assignee", TaskInput{Title: "x", AssignedTo: ptr("nobody")}},
		{"deactivated assignee", TaskInput{Title: "x", AssignedTo: ptr("gone")}},
		{"unverified assignee", TaskInput{Title: "x", AssignedTo: ptr("unverified")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "owner", tt.in)
			assert.ErrorIs(t, err, models.ErrBadRequest)
		})
	}
}

func TestTaskService_List(t *testing.T) {
	var got models.TaskFilter
	tasks := &MockTaskRepository{
		ListFunc: func(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error) {
			got = filter
			return []*models.Task{{ID: "task-1"}}, nil
		},
	}
	svc := NewTaskService(tasks, &MockAccountRepository{}, testLogger())

	list, err := svc.List(context.Background(), models.TaskFilter{Search: "rep", Status: models.TaskStatusCompleted, SortBy: "title"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, "rep", got.Search)
	assert.Equal(t, "title", got.SortBy)

	_, err = svc.List(context.Background(), models.TaskFilter{Status: "Blocked"})
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestTaskService_Update(t *testing.T) {
	deadline := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	existing := func() *models.Task {
		return &models.Task{
			ID: "task-1", Title: "Old", Status: models.TaskStatusPending,
			Deadline: &deadline, AssignedTo: ptr("worker"),
		}
	}
	tasks := &MockTaskRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Task, error) {
			if id == "task-1" {
				return existing(), nil
			}
			return nil, models.ErrNotFound
		},
	}
	svc := NewTaskService(tasks, &MockAccountRepository{}, testLogger())
	ctx := context.Background()

	updated, err := svc.Update(ctx, "task-1", models.TaskPatch{
		Title:         ptr("New"),
		Status:        ptr(models.TaskStatusInProgress),
		ClearDeadline: true,
		ClearAssignee: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, models.TaskStatusInProgress, updated.Status)
	assert.Nil(t, updated.Deadline)
	assert.Nil(t, updated.AssignedTo)

	untouched, err := svc.Update(ctx, "task-1", models.TaskPatch{Description: ptr("details")})
	require.NoError(t, err)
	assert.Equal(t, "Old", untouched.Title)
	assert.Equal(t, &deadline, untouched.Deadline)
	assert.Equal(t, "details", untouched.Description)

	_, err = svc.Update(ctx, "task-1", models.TaskPatch{Status: ptr("Done")})
	assert.ErrorIs(t, err, models.ErrBadRequest)

	_, err = svc.Update(ctx, "task-1", models.TaskPatch{AssignedTo: ptr("nobody")})
	assert.ErrorIs(t, err, models.ErrBadRequest)

	_, err = svc.Update(ctx, "missing", models.TaskPatch{Title: ptr("x")})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestTaskService_GetAndDelete(t *testing.T) {
	tasks := &MockTaskRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Task, error) {
			return nil, assert.AnError
		},
		DeleteFunc: func(ctx context.Context, id string) error {
			if id == "task-1" {
				return nil
			}
			return models.ErrNotFound
		},
	}
	svc := NewTaskService(tasks, &MockAccountRepository{}, testLogger())
	ctx := context.Background()

	_, err := svc.Get(ctx, "task-1")
	assert.ErrorIs(t, err, models.ErrInternalServer)

	assert.NoError(t, svc.Delete(ctx, "task-1"))
	assert.ErrorIs(t, svc.Delete(ctx, "task-2"), models.ErrNotFound)
}
