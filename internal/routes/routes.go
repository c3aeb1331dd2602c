package routes

import (
	"github.com/BradenHooton/taskdesk/internal/auth"
	"github.com/BradenHooton/taskdesk/internal/handlers"
	"github.com/BradenHooton/taskdesk/internal/middleware"
	"github.com/BradenHooton/taskdesk/internal/models"
	pkghttp "github.com/BradenHooton/taskdesk/pkg/http"
	"github.com/go-chi/chi/v5"
)

// Handlers groups the HTTP handlers mounted under /api.
type Handlers struct {
	Auth  *handlers.AuthHandler
	OAuth *handlers.OAuthHandler
	Admin *handlers.AdminHandler
	Tasks *handlers.TaskHandler
}

// RegisterRoutes registers all application routes under /api
func RegisterRoutes(
	router chi.Router,
	h Handlers,
	tokenManager *auth.TokenManager,
	accounts auth.AccountStatusChecker,
	rateLimit middleware.RateLimitConfig,
	ips *pkghttp.IPResolver,
) {
	router.Route("/api", func(api chi.Router) {
		// Public routes, rate limited per client address
		api.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(rateLimit, ips))
			r.Post("/auth/register", h.Auth.Register)
			r.Post("/auth/verify-otp", h.Auth.VerifyOTP)
			r.Post("/auth/login", h.Auth.Login)
			r.Post("/auth/forgot-password", h.Auth.ForgotPassword)
			r.Post("/auth/reset-password", h.Auth.ResetPassword)
			r.Get("/auth/google", h.OAuth.GoogleLogin)
			r.Get("/auth/google/callback", h.OAuth.GoogleCallback)
		})

		// Protected routes - authentication required
		api.Group(func(r chi.Router) {
			r.Use(auth.Authenticate(tokenManager, accounts))

			r.Get("/auth/profile", h.Auth.GetProfile)
			r.Put("/auth/profile", h.Auth.UpdateProfile)

			h.Tasks.RegisterRoutes(r)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(accounts, models.RoleAdmin))
				r.Get("/admin/users", h.Admin.ListUsers)
				r.Put("/admin/users/{id}", h.Admin.UpdateUser)
				r.Delete("/admin/users/{id}", h.Admin.DeleteUser)
			})
		})
	})
}
