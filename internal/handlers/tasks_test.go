package handlers_test

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/taskdesk/internal/handlers"
	"github.com/BradenHooton/taskdesk/internal/models"
	"github.com/BradenHooton/taskdesk/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const assigneeID = "6f1c2d3e-4a5b-4c6d-8e7f-8091a2b3c4d5"

func sampleTask(id string) *models.Task {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return &models.Task{
		ID: id, Title: "Write report", Status: models.TaskStatusPending,
		CreatedBy: "acc-1", CreatedAt: now, UpdatedAt: now,
	}
}

func TestCreateTask_Success(t *testing.T) {
	var gotCreator string
	var gotInput services.TaskInput
	mock := &handlers.MockTaskService{
		CreateFunc: func(ctx context.Context, creatorID string, in services.TaskInput) (*models.Task, error) {
			gotCreator, gotInput = creatorID, in
			task := sampleTask("t1")
			task.AssignedTo = in.AssignedTo
			task.Assignee = &models.TaskAssignee{ID: assigneeID, Name: "Bob", Email: "bob@example.com"}
			return task, nil
		},
	}
	body := fmt.Sprintf(`{"title":"Write report","deadline":"2024-03-10T00:00:00Z","assignedTo":%q}`, assigneeID)
	req := handlers.WithAuthContext(httptest.NewRequest("POST", "/api/tasks", strings.NewReader(body)), "acc-1", models.RoleUser)

	w := httptest.NewRecorder()
	handlers.NewTaskHandler(mock).CreateTask(w, req)

	var resp handlers.TaskResponse
	handlers.AssertJSONResponse(t, w, 201, &resp)
	assert.Equal(t, "t1", resp.ID)
	require.NotNil(t, resp.AssignedTo)
	assert.Equal(t, "Bob", resp.AssignedTo.Name)

	assert.Equal(t, "acc-1", gotCreator)
	assert.Equal(t, "Write report", gotInput.Title)
	require.NotNil(t, gotInput.Deadline)
	assert.True(t, gotInput.Deadline.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)))
}

func TestCreateTask_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing title", `{"description":"x"}`},
		{"unknown status", `{"title":"x","status":"Done"}`},
		{"bad assignee id", `{"title":"x","assignedTo":"bob"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := handlers.WithAuthContext(httptest.NewRequest("POST", "/api/tasks", strings.NewReader(tt.body)), "acc-1", models.RoleUser)
			w := httptest.NewRecorder()
			handlers.NewTaskHandler(&handlers.MockTaskService{}).CreateTask(w, req)

			handlers.AssertErrorResponse(t, w, 400, "bad_request")
		})
	}
}

func TestCreateTask_AcceptsInProgressStatus(t *testing.T) {
	mock := &handlers.MockTaskService{
		CreateFunc: func(ctx context.Context, creatorID string, in services.TaskInput) (*models.Task, error) {
			task := sampleTask("t1")
			task.Status = in.Status
			return task, nil
		},
	}
	req := handlers.WithAuthContext(httptest.NewRequest("POST", "/api/tasks",
		strings.NewReader(`{"title":"x","status":"In Progress"}`)), "acc-1", models.RoleUser)
	w := httptest.NewRecorder()
	handlers.NewTaskHandler(mock).CreateTask(w, req)

	var resp handlers.TaskResponse
	handlers.AssertJSONResponse(t, w, 201, &resp)
	assert.Equal(t, "In Progress", resp.Status)
}

func TestListTasks_PassesFilter(t *testing.T) {
	var got models.TaskFilter
	mock := &handlers.MockTaskService{
		ListFunc: func(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error) {
			got = filter
			return []*models.Task{sampleTask("t1"), sampleTask("t2")}, nil
		},
	}
	req := httptest.NewRequest("GET", "/api/tasks?search=report&status=Pending&sortBy=title", nil)
	w := httptest.NewRecorder()
	handlers.NewTaskHandler(mock).ListTasks(w, req)

	var resp []handlers.TaskResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Len(t, resp, 2)
	assert.Equal(t, models.TaskFilter{Search: "report", Status: "Pending", SortBy: "title"}, got)
}

func TestGetTask_NotFound(t *testing.T) {
	req := handlers.WithChiRouteContext(httptest.NewRequest("GET", "/api/tasks/t9", nil), map[string]string{"id": "t9"})
	w := httptest.NewRecorder()
	handlers.NewTaskHandler(&handlers.MockTaskService{}).GetTask(w, req)

	handlers.AssertErrorResponse(t, w, 404, "not_found")
}

func TestUpdateTask_NullClearsFields(t *testing.T) {
	var got models.TaskPatch
	mock := &handlers.MockTaskService{
		UpdateFunc: func(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
			got = patch
			return sampleTask(id), nil
		},
	}
	req := httptest.NewRequest("PUT", "/api/tasks/t1", strings.NewReader(`{"deadline":null,"assignedTo":null,"status":"Completed"}`))
	req = handlers.WithChiRouteContext(req, map[string]string{"id": "t1"})
	w := httptest.NewRecorder()
	handlers.NewTaskHandler(mock).UpdateTask(w, req)

	assert.Equal(t, 200, w.Code)
	assert.True(t, got.ClearDeadline)
	assert.True(t, got.ClearAssignee)
	assert.Nil(t, got.Deadline)
	assert.Nil(t, got.AssignedTo)
	assert.Nil(t, got.Title)
	require.NotNil(t, got.Status)
	assert.Equal(t, "Completed", *got.Status)
}

func TestUpdateTask_SetsAssignee(t *testing.T) {
	var got models.TaskPatch
	mock := &handlers.MockTaskService{
		UpdateFunc: func(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
			got = patch
			return sampleTask(id), nil
		},
	}
	req := httptest.NewRequest("PUT", "/api/tasks/t1", strings.NewReader(fmt.Sprintf(`{"assignedTo":%q}`, assigneeID)))
	req = handlers.WithChiRouteContext(req, map[string]string{"id": "t1"})
	w := httptest.NewRecorder()
	handlers.NewTaskHandler(mock).UpdateTask(w, req)

	assert.Equal(t, 200, w.Code)
	assert.False(t, got.ClearAssignee)
	assert.False(t, got.ClearDeadline)
	require.NotNil(t, got.AssignedTo)
	assert.Equal(t, assigneeID, *got.AssignedTo)
}

func TestUpdateTask_InvalidAssignee(t *testing.T) {
	req := httptest.NewRequest("PUT", "/api/tasks/t1", strings.NewReader(`{"assignedTo":"bob"}`))
	req = handlers.WithChiRouteContext(req, map[string]string{"id": "t1"})
	w := httptest.NewRecorder()
	handlers.NewTaskHandler(&handlers.MockTaskService{}).UpdateTask(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestUpdateTask_DeactivatedAssigneeRejected(t *testing.T) {
	mock := &handlers.MockTaskService{
		UpdateFunc: func(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
			return nil, fmt.Errorf("%w: assignee is deactivated", models.ErrBadRequest)
		},
	}
	req := httptest.NewRequest("PUT", "/api/tasks/t1", strings.NewReader(fmt.Sprintf(`{"assignedTo":%q}`, assigneeID)))
	req = handlers.WithChiRouteContext(req, map[string]string{"id": "t1"})
	w := httptest.NewRecorder()
	handlers.NewTaskHandler(mock).UpdateTask(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestDeleteTask(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		req := handlers.WithChiRouteContext(httptest.NewRequest("DELETE", "/api/tasks/t1", nil), map[string]string{"id": "t1"})
		w := httptest.NewRecorder()
		handlers.NewTaskHandler(&handlers.MockTaskService{}).DeleteTask(w, req)
		assert.Equal(t, 200, w.Code)
	})

	t.Run("internal error", func(t *testing.T) {
		mock := &handlers.MockTaskService{
			DeleteFunc: func(ctx context.Context, id string) error { return errors.New("boom") },
		}
		req := handlers.WithChiRouteContext(httptest.NewRequest("DELETE", "/api/tasks/t1", nil), map[string]string{"id": "t1"})
		w := httptest.NewRecorder()
		handlers.NewTaskHandler(mock).DeleteTask(w, req)
		handlers.AssertErrorResponse(t, w, 500, "internal_error")
	})
}
