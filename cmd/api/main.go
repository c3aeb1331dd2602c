package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/taskdesk/internal/auth"
	"github.com/BradenHooton/taskdesk/internal/background"
	"github.com/BradenHooton/taskdesk/internal/config"
	"github.com/BradenHooton/taskdesk/internal/database"
	"github.com/BradenHooton/taskdesk/internal/handlers"
	middlewareCustom "github.com/BradenHooton/taskdesk/internal/middleware"
	"github.com/BradenHooton/taskdesk/internal/models"
	"github.com/BradenHooton/taskdesk/internal/repositories"
	"github.com/BradenHooton/taskdesk/internal/routes"
	"github.com/BradenHooton/taskdesk/internal/services"
	pkgauth "github.com/BradenHooton/taskdesk/pkg/auth"
	pkghttp "github.com/BradenHooton/taskdesk/pkg/http"
	pkglogger "github.com/BradenHooton/taskdesk/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Server.SlogLevel()}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped gracefully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.MigrateOnStart {
		if err := database.Migrate(ctx, &cfg.Database, logger); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	// Initialize database
	db, err := database.NewConnection(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	accountRepo := repositories.NewAccountRepository(db)
	outboxRepo := repositories.NewOutboxRepository(db)
	taskRepo := repositories.NewTaskRepository(db)

	sender, err := newEmailSender(ctx, cfg.Email, logger)
	if err != nil {
		return err
	}

	dispatcher := background.NewDispatcher(outboxRepo, accountRepo, sender, cfg.Outbox, logger)

	// Initialize services
	auditLogger := pkglogger.NewAuditLogger(logger)
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	timingDelay := auth.NewTimingDelay(
		time.Duration(cfg.Auth.TimingDelayBaseMs)*time.Millisecond,
		time.Duration(cfg.Auth.TimingDelayRandomMs)*time.Millisecond,
	)
	otpService := services.NewOTPService(accountRepo, outboxRepo, cfg.Auth.OTPExpiry)
	authService := services.NewAuthService(
		accountRepo, otpService, db, dispatcher, tokenManager, timingDelay,
		logger, auditLogger, cfg.Auth.AllowAdminSelfRegistration,
	)
	userService := services.NewUserService(accountRepo, logger)
	adminService := services.NewAdminService(accountRepo, logger, auditLogger)
	taskService := services.NewTaskService(taskRepo, accountRepo, logger)

	bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := ensureAdminAccount(bootCtx, accountRepo, logger); err != nil {
		logger.Error("failed to ensure admin account", slog.Any("error", err))
	}
	cancel()

	ips, err := pkghttp.NewIPResolver(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("configure trusted proxies: %w", err)
	}

	// Setup router. RealIP is deliberately absent: client addresses come
	// from the IPResolver, which only honours trusted proxies.
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.NewCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger, ips))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, routes.Handlers{
		Auth:  handlers.NewAuthHandler(authService, userService, logger),
		OAuth: handlers.NewOAuthHandler(authService, cfg.OAuth, cfg.Server.Env == "production", logger),
		Admin: handlers.NewAdminHandler(adminService, logger),
		Tasks: handlers.NewTaskHandler(taskService),
	}, tokenManager, accountRepo, middlewareCustom.RateLimitConfig{RequestsPerMinute: cfg.Auth.AuthRequestsPerMinute}, ips)

	router.Get("/health", handlers.Health(db))

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start notification dispatcher
	dispatchCtx, dispatchCancel := context.WithCancel(context.Background())
	defer dispatchCancel()
	go dispatcher.Start(dispatchCtx)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr), slog.Bool("google_oauth", cfg.OAuth.GoogleEnabled()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Graceful shutdown
	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	dispatcher.Stop()
	dispatchCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	stats := db.Stats()
	logger.Info("database pool at shutdown",
		slog.Int("total_conns", int(stats["total_conns"])),
		slog.Int("acquired_conns", int(stats["acquired_conns"])))
	return nil
}

func newEmailSender(ctx context.Context, cfg config.EmailConfig, logger *slog.Logger) (services.EmailSender, error) {
	if cfg.Provider == "ses" {
		sender, err := services.NewSESEmailSender(ctx, cfg.AWSRegion, cfg.FromAddress, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize SES sender: %w", err)
		}
		return sender, nil
	}
	logger.Warn("EMAIL_PROVIDER=log: one-time codes are written to the log, not emailed")
	return services.NewLogEmailSender(logger), nil
}

// ensureAdminAccount creates an active admin account if ADMIN_EMAIL and
// ADMIN_PASSWORD are set and no account uses that email yet.
func ensureAdminAccount(ctx context.Context, accounts *repositories.AccountRepository, logger *slog.Logger) error {
	adminEmail := services.NormalizeEmail(os.Getenv("ADMIN_EMAIL"))
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin account creation")
		return nil
	}

	_, err := accounts.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin account already exists")
		return nil
	}
	if !errors.Is(err, models.ErrAccountNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	if err := pkgauth.ValidatePassword(adminPassword); err != nil {
		return fmt.Errorf("invalid ADMIN_PASSWORD: %w", err)
	}
	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	_, err = accounts.Create(ctx, &models.Account{
		Name:         "Admin",
		Email:        adminEmail,
		PasswordHash: hashedPassword,
		Role:         models.RoleAdmin,
		Status:       models.StatusActive,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	logger.Info("admin account created", slog.String("email", pkglogger.SanitizedEmail(adminEmail)))
	return nil
}
