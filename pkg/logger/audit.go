package logger

import (
	"context"
	"log/slog"
	"sort"
)

// AuditEvent is a security-relevant account lifecycle event.
type AuditEvent struct {
	Action    string // register, verify_otp, login, federated_login, password_reset_request, password_reset, admin_update, admin_deactivate
	AccountID string
	ActorID   string // set when someone other than the account owner acted
	Email     string // masked before it is written
	Success   bool
	Reason    string
	Metadata  map[string]string
}

// AuditLogger writes audit events as structured log records.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger.With(slog.String("audit", "account")),
	}
}

// Record logs e at info level on success and warn level on failure. A nil
// AuditLogger discards the event.
func (al *AuditLogger) Record(ctx context.Context, e AuditEvent) {
	if al == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("action", e.Action),
		slog.Bool("success", e.Success),
	}
	if e.AccountID != "" {
		attrs = append(attrs, slog.String("account_id", e.AccountID))
	}
	if e.ActorID != "" {
		attrs = append(attrs, slog.String("actor_id", e.ActorID))
	}
	if e.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(e.Email)))
	}
	if e.Reason != "" {
		attrs = append(attrs, slog.String("reason", e.Reason))
	}

	keys := make([]string, 0, len(e.Metadata))
	for k := range e.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.String(k, e.Metadata[k]))
	}

	level := slog.LevelInfo
	if !e.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit event", attrs...)
}
