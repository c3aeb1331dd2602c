package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BradenHooton/taskdesk/internal/auth"
	"github.com/BradenHooton/taskdesk/internal/models"
	"github.com/BradenHooton/taskdesk/internal/services"
	pkghttp "github.com/BradenHooton/taskdesk/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AdminServiceInterface defines the account administration contract.
type AdminServiceInterface interface {
	ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, int, error)
	UpdateAccount(ctx context.Context, actorID, id string, patch models.AccountPatch) (*models.Account, error)
	DeactivateAccount(ctx context.Context, actorID, id string) (*models.Account, error)
}

// AdminHandler handles account administration HTTP requests.
type AdminHandler struct {
	service AdminServiceInterface
	logger  *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service AdminServiceInterface, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{service: service, logger: logger}
}

// ListUsers handles GET /api/admin/users
// Accepts optional query params ?limit=N (1–200, default 50) and ?offset=N.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit := services.DefaultPageSize
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= services.MaxPageSize {
			limit = n
		}
	}
	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}

	accounts, total, err := h.service.ListAccounts(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to list users")
		return
	}

	resp := ListAccountsResponse{Users: make([]*AccountResponse, 0, len(accounts)), Total: total}
	for _, a := range accounts {
		resp.Users = append(resp.Users, accountToResponse(a))
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// UpdateUser handles PUT /api/admin/users/{id}
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req AdminUpdateAccountRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	account, err := h.service.UpdateAccount(r.Context(), claims.AccountID, chi.URLParam(r, "id"), models.AccountPatch{
		Name:     req.Name,
		Email:    req.Email,
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if err != nil {
		writeResourceError(w, err, "User not found")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, accountToResponse(account))
}

// DeleteUser handles DELETE /api/admin/users/{id}. Accounts are deactivated,
// never removed.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	account, err := h.service.DeactivateAccount(r.Context(), claims.AccountID, chi.URLParam(r, "id"))
	if err != nil {
		writeResourceError(w, err, "User not found")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, DeactivateAccountResponse{
		Message: "User deactivated",
		User:    accountToResponse(account),
	})
}
