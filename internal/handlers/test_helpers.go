package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/taskdesk/internal/auth"
	"github.com/BradenHooton/taskdesk/internal/models"
	"github.com/BradenHooton/taskdesk/internal/services"
	pkghttp "github.com/BradenHooton/taskdesk/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// DiscardLogger returns a logger that drops everything
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds token claims to request context for testing authenticated endpoints
func WithAuthContext(req *http.Request, accountID, role string) *http.Request {
	claims := &models.TokenClaims{
		AccountID: accountID,
		Role:      role,
	}
	ctx := context.WithValue(req.Context(), auth.ClaimsContextKey, claims)
	return req.WithContext(ctx)
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	RegisterFunc       func(ctx context.Context, in services.RegisterInput) (*models.Account, error)
	VerifyOTPFunc      func(ctx context.Context, email, code string) error
	LoginFunc          func(ctx context.Context, email, password string) (*services.LoginResult, error)
	ForgotPasswordFunc func(ctx context.Context, email string) error
	ResetPasswordFunc  func(ctx context.Context, email, code, newPassword string) error
}

func (m *MockAuthService) Register(ctx context.Context, in services.RegisterInput) (*models.Account, error) {
	if m.RegisterFunc == nil {
		return &models.Account{ID: "acc-1", Email: in.Email, Name: in.Name}, nil
	}
	return m.RegisterFunc(ctx, in)
}

func (m *MockAuthService) VerifyOTP(ctx context.Context, email, code string) error {
	if m.VerifyOTPFunc == nil {
		return nil
	}
	return m.VerifyOTPFunc(ctx, email, code)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, email, password)
}

func (m *MockAuthService) ForgotPassword(ctx context.Context, email string) error {
	if m.ForgotPasswordFunc == nil {
		return nil
	}
	return m.ForgotPasswordFunc(ctx, email)
}

func (m *MockAuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if m.ResetPasswordFunc == nil {
		return nil
	}
	return m.ResetPasswordFunc(ctx, email, code, newPassword)
}

// MockProfileService implements ProfileServiceInterface for testing
type MockProfileService struct {
	GetProfileFunc    func(ctx context.Context, id string) (*models.Account, error)
	UpdateProfileFunc func(ctx context.Context, id, name, email string) (*models.Account, error)
}

func (m *MockProfileService) GetProfile(ctx context.Context, id string) (*models.Account, error) {
	if m.GetProfileFunc == nil {
		return nil, models.ErrAccountNotFound
	}
	return m.GetProfileFunc(ctx, id)
}

func (m *MockProfileService) UpdateProfile(ctx context.Context, id, name, email string) (*models.Account, error) {
	if m.UpdateProfileFunc == nil {
		return nil, models.ErrAccountNotFound
	}
	return m.UpdateProfileFunc(ctx, id, name, email)
}

// MockFederatedLoginService implements FederatedLoginService for testing
type MockFederatedLoginService struct {
	FederatedLoginFunc func(ctx context.Context, profile models.FederatedProfile) (*services.LoginResult, error)
}

func (m *MockFederatedLoginService) FederatedLogin(ctx context.Context, profile models.FederatedProfile) (*services.LoginResult, error) {
	if m.FederatedLoginFunc == nil {
		return nil, models.ErrProviderError
	}
	return m.FederatedLoginFunc(ctx, profile)
}

// MockAdminService implements AdminServiceInterface for testing
type MockAdminService struct {
	ListAccountsFunc      func(ctx context.Context, limit, offset int) ([]*models.Account, int, error)
	UpdateAccountFunc     func(ctx context.Context, actorID, id string, patch models.AccountPatch) (*models.Account, error)
	DeactivateAccountFunc func(ctx context.Context, actorID, id string) (*models.Account, error)
}

func (m *MockAdminService) ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, int, error) {
	if m.ListAccountsFunc == nil {
		return []*models.Account{}, 0, nil
	}
	return m.ListAccountsFunc(ctx, limit, offset)
}

func (m *MockAdminService) UpdateAccount(ctx context.Context, actorID, id string, patch models.AccountPatch) (*models.Account, error) {
	if m.UpdateAccountFunc == nil {
		return nil, models.ErrAccountNotFound
	}
	return m.UpdateAccountFunc(ctx, actorID, id, patch)
}

func (m *MockAdminService) DeactivateAccount(ctx context.Context, actorID, id string) (*models.Account, error) {
	if m.DeactivateAccountFunc == nil {
		return nil, models.ErrAccountNotFound
	}
	return m.DeactivateAccountFunc(ctx, actorID, id)
}

// MockTaskService implements TaskServiceInterface for testing
type MockTaskService struct {
	CreateFunc func(ctx context.Context, creatorID string, in services.TaskInput) (*models.Task, error)
	ListFunc   func(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error)
	GetFunc    func(ctx context.Context, id string) (*models.Task, error)
	UpdateFunc func(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error)
	DeleteFunc func(ctx context.Context, id string) error
}

func (m *MockTaskService) Create(ctx context.Context, creatorID string, in services.TaskInput) (*models.Task, error) {
	if m.CreateFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.CreateFunc(ctx, creatorID, in)
}

func (m *MockTaskService) List(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error) {
	if m.ListFunc == nil {
		return []*models.Task{}, nil
	}
	return m.ListFunc(ctx, filter)
}

func (m *MockTaskService) Get(ctx context.Context, id string) (*models.Task, error) {
	if m.GetFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetFunc(ctx, id)
}

func (m *MockTaskService) Update(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	if m.UpdateFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateFunc(ctx, id, patch)
}

func (m *MockTaskService) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, id)
}
