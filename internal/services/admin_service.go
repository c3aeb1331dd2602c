package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/taskdesk/internal/models"
	pkglogger "github.com/BradenHooton/taskdesk/pkg/logger"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// AdminService implements account administration.
type AdminService struct {
	accounts AccountRepository
	logger   *slog.Logger
	audit    *pkglogger.AuditLogger
}

// NewAdminService creates a new AdminService.
func NewAdminService(accounts AccountRepository, logger *slog.Logger, audit *pkglogger.AuditLogger) *AdminService {
	return &AdminService{
		accounts: accounts,
		logger:   logger,
		audit:    audit,
	}
}

// ListAccounts returns a page of accounts, newest first, and the total count.
func (s *AdminService) ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, int, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	accounts, err := s.accounts.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("failed to list accounts", slog.Int("limit", limit), slog.Int("offset", offset), slog.Any("error", err))
		return nil, 0, models.ErrInternalServer
	}

	total, err := s.accounts.Count(ctx)
	if err != nil {
		s.logger.Error("failed to count accounts", slog.Any("error", err))
		return nil, 0, models.ErrInternalServer
	}

	return accounts, total, nil
}

// UpdateAccount applies patch to the account with id. isActive true moves the
// account to active and false deactivates it. An administrator may not
// deactivate or demote themselves. Only the fields present in patch are
// written.
func (s *AdminService) UpdateAccount(ctx context.Context, actorID, id string, patch models.AccountPatch) (*models.Account, error) {
	var changes models.AccountChanges

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", models.ErrBadRequest)
		}
		changes.Name = &name
	}
	if patch.Email != nil {
		email := NormalizeEmail(*patch.Email)
		if email == "" {
			return nil, fmt.Errorf("%w: email cannot be empty", models.ErrBadRequest)
		}
		changes.Email = &email
	}
	if patch.Role != nil {
		role := *patch.Role
		if role != models.RoleAdmin && role != models.RoleUser {
			return nil, fmt.Errorf("%w: unknown role %q", models.ErrBadRequest, role)
		}
		if actorID == id && role != models.RoleAdmin {
			return nil, models.ErrSelfModification
		}
		changes.Role = &role
	}
	if patch.IsActive != nil {
		status := models.StatusActive
		if !*patch.IsActive {
			if actorID == id {
				return nil, models.ErrSelfModification
			}
			status = models.StatusDeactivated
		}
		changes.Status = &status
	}

	updated, err := s.accounts.ApplyChanges(ctx, id, changes)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateEmail) || errors.Is(err, models.ErrAccountNotFound) {
			return nil, err
		}
		s.logger.Error("failed to update account", slog.String("account_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.Record(ctx, pkglogger.AuditEvent{
		Action: "admin_update", AccountID: id, ActorID: actorID, Success: true,
		Metadata: map[string]string{"role": updated.Role, "status": string(updated.Status)},
	})
	return updated, nil
}

// DeactivateAccount soft-deletes the account with id. Deactivating an
// account twice is not an error.
func (s *AdminService) DeactivateAccount(ctx context.Context, actorID, id string) (*models.Account, error) {
	if actorID == id {
		return nil, models.ErrSelfModification
	}

	status := models.StatusDeactivated
	updated, err := s.accounts.ApplyChanges(ctx, id, models.AccountChanges{Status: &status})
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			return nil, err
		}
		s.logger.Error("failed to deactivate account", slog.String("account_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.Record(ctx, pkglogger.AuditEvent{Action: "admin_deactivate", AccountID: id, ActorID: actorID, Success: true})
	return updated, nil
}
