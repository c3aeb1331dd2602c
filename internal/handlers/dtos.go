package handlers

import (
	"encoding/json"
	"time"

	"github.com/BradenHooton/taskdesk/internal/models"
)

// Request DTOs

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

// VerifyOTPRequest represents the request body for code verification
type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,max=16"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ForgotPasswordRequest represents the request body for a reset code
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest represents the request body for a password reset.
// Password length is checked by the service so it can report
// password_too_short.
type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required"`
	NewPassword string `json:"newPassword"`
}

// UpdateProfileRequest represents the request body for a profile update
type UpdateProfileRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email"`
}

// AdminUpdateAccountRequest carries the optional fields an administrator may change
type AdminUpdateAccountRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Role     *string `json:"role" validate:"omitempty,oneof=user admin"`
	IsActive *bool   `json:"isActive"`
}

// CreateTaskRequest represents the request body for a new task
type CreateTaskRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	Deadline    *time.Time `json:"deadline"`
	AssignedTo  *string    `json:"assignedTo" validate:"omitempty,uuid"`
	Status      string     `json:"status" validate:"omitempty,oneof=Pending 'In Progress' Completed"`
}

// UpdateTaskRequest represents a partial task update. A JSON null clears
// deadline or assignedTo; an absent field is left unchanged.
type UpdateTaskRequest struct {
	Title       *string             `json:"title" validate:"omitempty,max=200"`
	Description *string             `json:"description" validate:"omitempty,max=5000"`
	Deadline    Optional[time.Time] `json:"deadline"`
	AssignedTo  Optional[string]    `json:"assignedTo"`
	Status      *string             `json:"status" validate:"omitempty,oneof=Pending 'In Progress' Completed"`
}

// Optional records whether a JSON field was present and whether it was null.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Null = true
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// Response DTOs

// AccountResponse is an account without its secret or code fields
type AccountResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LoginUser is the account summary returned with a token
type LoginUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// LoginResponse is returned by a successful login
type LoginResponse struct {
	Token string    `json:"token"`
	User  LoginUser `json:"user"`
}

// ListAccountsResponse represents a page of accounts
type ListAccountsResponse struct {
	Users []*AccountResponse `json:"users"`
	Total int                `json:"total"`
}

// DeactivateAccountResponse is returned by an administrative delete
type DeactivateAccountResponse struct {
	Message string           `json:"message"`
	User    *AccountResponse `json:"user"`
}

// TaskAssigneeResponse is the resolved assignee of a task
type TaskAssigneeResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TaskResponse represents a task in the HTTP response
type TaskResponse struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Deadline    *time.Time            `json:"deadline"`
	AssignedTo  *TaskAssigneeResponse `json:"assignedTo"`
	Status      string                `json:"status"`
	CreatedBy   string                `json:"createdBy"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

func accountToResponse(a *models.Account) *AccountResponse {
	return &AccountResponse{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Role:      a.Role,
		IsActive:  a.IsActive(),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func taskToResponse(t *models.Task) *TaskResponse {
	resp := &TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Deadline:    t.Deadline,
		Status:      t.Status,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.Assignee != nil {
		resp.AssignedTo = &TaskAssigneeResponse{
			ID:    t.Assignee.ID,
			Name:  t.Assignee.Name,
			Email: t.Assignee.Email,
		}
	}
	return resp
}
