package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/taskdesk/internal/models"
)

// TaskInput carries the fields of a new task.
type TaskInput struct {
	Title       string
	Description string
	Deadline    *time.Time
	AssignedTo  *string
	Status      string
}

// TaskService handles task business logic
type TaskService struct {
	tasks    TaskRepository
	accounts AccountRepository
	logger   *slog.Logger
}

// NewTaskService creates a new TaskService
func NewTaskService(tasks TaskRepository, accounts AccountRepository, logger *slog.Logger) *TaskService {
	return &TaskService{
		tasks:    tasks,
		accounts: accounts,
		logger:   logger,
	}
}

func validTaskStatus(status string) bool {
	switch status {
	case models.TaskStatusPending, models.TaskStatusInProgress, models.TaskStatusCompleted:
		return true
	}
	return false
}

// Create stores a new task owned by creatorID.
func (s *TaskService) Create(ctx context.Context, creatorID string, in TaskInput) (*models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", models.ErrBadRequest)
	}
	status := in.Status
	if status == "" {
		status = models.TaskStatusPending
	}
	if !validTaskStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrBadRequest, status)
	}
	if err := s.checkAssignee(ctx, in.AssignedTo); err != nil {
		return nil, err
	}

	task, err := s.tasks.Create(ctx, &models.Task{
		Title:       title,
		Description: in.Description,
		Deadline:    in.Deadline,
		AssignedTo:  in.AssignedTo,
		Status:      status,
		CreatedBy:   creatorID,
	})
	if err != nil {
		s.logger.Error("failed to create task", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("task created", slog.String("task_id", task.ID), slog.String("account_id", creatorID))
	return task, nil
}

// List returns tasks matching filter. Unknown sort keys fall back to
// deadline order.
func (s *TaskService) List(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error) {
	if filter.Status != "" && !validTaskStatus(filter.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrBadRequest, filter.Status)
	}

	tasks, err := s.tasks.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list tasks", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return tasks, nil
}

func (s *TaskService) Get(ctx context.Context, id string) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("failed to get task", slog.String("task_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return task, nil
}

// Update applies the set fields of patch to the task with id.
func (s *TaskService) Update(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", models.ErrBadRequest)
		}
		task.Title = title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	switch {
	case patch.ClearDeadline:
		task.Deadline = nil
	case patch.Deadline != nil:
		task.Deadline = patch.Deadline
	}
	switch {
	case patch.ClearAssignee:
		task.AssignedTo = nil
	case patch.AssignedTo != nil:
		if err := s.checkAssignee(ctx, patch.AssignedTo); err != nil {
			return nil, err
		}
		task.AssignedTo = patch.AssignedTo
	}
	if patch.Status != nil {
		if !validTaskStatus(*patch.Status) {
			return nil, fmt.Errorf("%w: unknown status %q", models.ErrBadRequest, *patch.Status)
		}
		task.Status = *patch.Status
	}

	updated, err := s.tasks.Update(ctx, task)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("failed to update task", slog.String("task_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return updated, nil
}

func (s *TaskService) Delete(ctx context.Context, id string) error {
	if err := s.tasks.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return err
		}
		s.logger.Error("failed to delete task", slog.String("task_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("task deleted", slog.String("task_id", id))
	return nil
}

// checkAssignee rejects assignment to a missing, unverified or deactivated
// account.
func (s *TaskService) checkAssignee(ctx context.Context, id *string) error {
	if id == nil {
		return nil
	}
	account, err := s.accounts.GetByID(ctx, *id)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			return fmt.Errorf("%w: assignee does not exist", models.ErrBadRequest)
		}
		s.logger.Error("failed to look up assignee", slog.String("account_id", *id), slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !account.IsActive() {
		return fmt.Errorf("%w: assignee is not active", models.ErrBadRequest)
	}
	return nil
}
