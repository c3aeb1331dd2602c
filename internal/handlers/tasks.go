package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/taskdesk/internal/auth"
	"github.com/BradenHooton/taskdesk/internal/models"
	"github.com/BradenHooton/taskdesk/internal/services"
	pkghttp "github.com/BradenHooton/taskdesk/pkg/http"
	"github.com/go-chi/chi/v5"
)

// TaskServiceInterface defines the interface for task business logic
type TaskServiceInterface interface {
	Create(ctx context.Context, creatorID string, in services.TaskInput) (*models.Task, error)
	List(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error)
	Get(ctx context.Context, id string) (*models.Task, error)
	Update(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error)
	Delete(ctx context.Context, id string) error
}

// TaskHandler handles task HTTP requests
type TaskHandler struct {
	service TaskServiceInterface
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(service TaskServiceInterface) *TaskHandler {
	return &TaskHandler{service: service}
}

// RegisterRoutes registers the task routes on an authenticated router
func (h *TaskHandler) RegisterRoutes(router chi.Router) {
	router.Route("/tasks", func(r chi.Router) {
		r.Post("/", h.CreateTask)
		r.Get("/", h.ListTasks)
		r.Get("/{id}", h.GetTask)
		r.Put("/{id}", h.UpdateTask)
		r.Delete("/{id}", h.DeleteTask)
	})
}

// CreateTask handles POST /api/tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req CreateTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	task, err := h.service.Create(r.Context(), claims.AccountID, services.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Deadline:    req.Deadline,
		AssignedTo:  req.AssignedTo,
		Status:      req.Status,
	})
	if err != nil {
		writeResourceError(w, err, "Task not found")
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, taskToResponse(task))
}

// ListTasks handles GET /api/tasks?search=&status=&sortBy=
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tasks, err := h.service.List(r.Context(), models.TaskFilter{
		Search: q.Get("search"),
		Status: q.Get("status"),
		SortBy: q.Get("sortBy"),
	})
	if err != nil {
		writeResourceError(w, err, "Task not found")
		return
	}

	resp := make([]*TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, taskToResponse(t))
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// GetTask handles GET /api/tasks/{id}
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeResourceError(w, err, "Task not found")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, taskToResponse(task))
}

// UpdateTask handles PUT /api/tasks/{id}
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var req UpdateTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.AssignedTo.Set && !req.AssignedTo.Null {
		if err := validate.Var(req.AssignedTo.Value, "uuid"); err != nil {
			pkghttp.WriteBadRequest(w, "validation failed: assignedTo: must be a valid id")
			return
		}
	}

	patch := models.TaskPatch{
		Title:         req.Title,
		Description:   req.Description,
		Status:        req.Status,
		ClearDeadline: req.Deadline.Set && req.Deadline.Null,
		ClearAssignee: req.AssignedTo.Set && req.AssignedTo.Null,
	}
	if req.Deadline.Set && !req.Deadline.Null {
		patch.Deadline = &req.Deadline.Value
	}
	if req.AssignedTo.Set && !req.AssignedTo.Null {
		patch.AssignedTo = &req.AssignedTo.Value
	}

	task, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeResourceError(w, err, "Task not found")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, taskToResponse(task))
}

// DeleteTask handles DELETE /api/tasks/{id}
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeResourceError(w, err, "Task not found")
		return
	}
	pkghttp.WriteMessage(w, http.StatusOK, "Task deleted successfully")
}
