package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/taskdesk/internal/models"
)

// UserService handles an account holder's own profile.
type UserService struct {
	accounts AccountRepository
	logger   *slog.Logger
}

// NewUserService creates a new UserService
func NewUserService(accounts AccountRepository, logger *slog.Logger) *UserService {
	return &UserService{
		accounts: accounts,
		logger:   logger,
	}
}

// GetProfile returns the account with id.
func (s *UserService) GetProfile(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			return nil, err
		}
		s.logger.Error("failed to get profile", slog.String("account_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return account, nil
}

// UpdateProfile changes the name and email of the account with id.
func (s *UserService) UpdateProfile(ctx context.Context, id, name, email string) (*models.Account, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" {
		return nil, fmt.Errorf("%w: name and email are required", models.ErrBadRequest)
	}

	updated, err := s.accounts.UpdateProfile(ctx, id, name, email)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateEmail) || errors.Is(err, models.ErrAccountNotFound) {
			return nil, err
		}
		s.logger.Error("failed to update profile", slog.String("account_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("profile updated", slog.String("account_id", id))
	return updated, nil
}
