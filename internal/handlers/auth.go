package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/taskdesk/internal/auth"
	"github.com/BradenHooton/taskdesk/internal/models"
	"github.com/BradenHooton/taskdesk/internal/services"
	pkghttp "github.com/BradenHooton/taskdesk/pkg/http"
	pkglogger "github.com/BradenHooton/taskdesk/pkg/logger"
)

// AuthServiceInterface defines the interface for account lifecycle logic
type AuthServiceInterface interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.Account, error)
	VerifyOTP(ctx context.Context, email, code string) error
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
}

// ProfileServiceInterface defines the interface for self-service profile access
type ProfileServiceInterface interface {
	GetProfile(ctx context.Context, id string) (*models.Account, error)
	UpdateProfile(ctx context.Context, id, name, email string) (*models.Account, error)
}

// AuthHandler handles account lifecycle HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	profiles ProfileServiceInterface
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, profiles ProfileServiceInterface, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:  service,
		profiles: profiles,
		logger:   logger,
	}
}

// forgotPasswordMessage is returned whether or not the address is registered.
const forgotPasswordMessage = "If an account exists for this email, a reset code has been sent"

// decodeAndValidate reads the body into req and runs its validation tags,
// writing a 400 on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := pkghttp.DecodeJSON(r, req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return false
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// Register handles self-registration
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	_, err := h.service.Register(r.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		if !isClientError(err) {
			h.logger.Error("registration failed", slog.String("email", pkglogger.SanitizedEmail(req.Email)), slog.Any("error", err))
		}
		writeLifecycleError(w, err)
		return
	}

	pkghttp.WriteMessage(w, http.StatusCreated, "User registered successfully. Check your email for the verification code.")
}

// VerifyOTP handles email verification with a one-time code
// @Router /api/auth/verify-otp [post]
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.VerifyOTP(r.Context(), req.Email, req.OTP); err != nil {
		if !isClientError(err) {
			h.logger.Error("verification failed", slog.Any("error", err))
		}
		writeLifecycleError(w, err)
		return
	}

	pkghttp.WriteMessage(w, http.StatusOK, "Email verified successfully")
}

// Login handles password login
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		// Deactivated accounts get the same answer as a wrong password.
		if errors.Is(err, models.ErrAccountDeactivated) {
			err = models.ErrInvalidCredentials
		}
		if !isClientError(err) {
			h.logger.Error("login failed", slog.Any("error", err))
		}
		writeLifecycleError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
		Token: result.Token,
		User: LoginUser{
			ID:    result.Account.ID,
			Name:  result.Account.Name,
			Email: result.Account.Email,
			Role:  result.Account.Role,
		},
	})
}

// ForgotPassword handles password reset code requests
// @Router /api/auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		h.logger.Error("forgot password failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteMessage(w, http.StatusOK, forgotPasswordMessage)
}

// ResetPassword handles password reset with a one-time code
// @Router /api/auth/reset-password [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		if !isClientError(err) {
			h.logger.Error("password reset failed", slog.Any("error", err))
		}
		writeLifecycleError(w, err)
		return
	}

	pkghttp.WriteMessage(w, http.StatusOK, "Password reset successfully")
}

// GetProfile returns the caller's account
// @Router /api/auth/profile [get]
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	account, err := h.profiles.GetProfile(r.Context(), claims.AccountID)
	if err != nil {
		writeResourceError(w, err, "User not found")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, accountToResponse(account))
}

// UpdateProfile changes the caller's name and email
// @Router /api/auth/profile [put]
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req UpdateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	account, err := h.profiles.UpdateProfile(r.Context(), claims.AccountID, req.Name, req.Email)
	if err != nil {
		writeResourceError(w, err, "User not found")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, accountToResponse(account))
}

// isClientError reports whether err is an expected outcome of bad input
// rather than a server fault.
func isClientError(err error) bool {
	if errors.Is(err, models.ErrBadRequest) {
		return true
	}
	for _, e := range lifecycleErrors {
		if errors.Is(err, e.err) {
			return true
		}
	}
	return false
}
