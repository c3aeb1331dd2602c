package models

import (
	"time"
)

const (
	TaskStatusPending    = "Pending"
	TaskStatusInProgress = "In Progress"
	TaskStatusCompleted  = "Completed"
)

type Task struct {
	ID          string
	Title       string
	Description string
	Deadline    *time.Time
	AssignedTo  *string
	Status      string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Assignee is resolved on read and left nil when the assigned account
	// is missing or deactivated.
	Assignee *TaskAssignee
}

type TaskAssignee struct {
	ID    string
	Name  string
	Email string
}

// TaskFilter narrows and orders a task listing.
type TaskFilter struct {
	Search string
	Status string
	SortBy string
}

// TaskPatch carries the optional fields of a task update.
type TaskPatch struct {
	Title         *string
	Description   *string
	Deadline      *time.Time
	ClearDeadline bool
	AssignedTo    *string
	ClearAssignee bool
	Status        *string
}
