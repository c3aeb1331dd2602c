package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/taskdesk/internal/models"
	pkglogger "github.com/BradenHooton/taskdesk/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailSender delivers one-time codes.
type EmailSender interface {
	SendOneTimeCode(ctx context.Context, to string, kind models.NotificationKind, code string, expiresAt time.Time) error
}

// OTPEmail is a rendered one-time-code message.
type OTPEmail struct {
	Subject string
	HTML    string
	Text    string
}

// RenderOTPEmail builds the message for kind. validity is how long the code
// lasts, rounded to minutes in the copy.
func RenderOTPEmail(kind models.NotificationKind, code string, validity time.Duration) OTPEmail {
	minutes := int(validity.Round(time.Minute) / time.Minute)

	purpose := "verify your email address"
	subject := "Your OTP Code for Task Management App"
	if kind == models.NotificationPasswordReset {
		purpose = "reset your password"
		subject = "Your password reset code for Task Management App"
	}

	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <h3>Your OTP Code</h3>
    <p>Please use the following OTP code to %s. It will expire in %d minutes.</p>
    <h2 style="color: #2e86de;">%s</h2>
    <p>If you did not request this code, please ignore this email.</p>
</body>
</html>
`, purpose, minutes, code)

	text := fmt.Sprintf(`Your OTP Code

Please use the following OTP code to %s. It will expire in %d minutes.

    %s

If you did not request this code, please ignore this email.
`, purpose, minutes, code)

	return OTPEmail{Subject: subject, HTML: html, Text: text}
}

// sesAPI is the slice of the SES client used here.
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESEmailSender sends emails using AWS SES
type SESEmailSender struct {
	client      sesAPI
	fromAddress string
	logger      *slog.Logger
	now         func() time.Time
}

// NewSESEmailSender loads the default AWS credential chain for region.
func NewSESEmailSender(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*SESEmailSender, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return newSESEmailSender(ses.NewFromConfig(cfg), fromAddress, logger), nil
}

func newSESEmailSender(client sesAPI, fromAddress string, logger *slog.Logger) *SESEmailSender {
	return &SESEmailSender{
		client:      client,
		fromAddress: fromAddress,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *SESEmailSender) SendOneTimeCode(ctx context.Context, to string, kind models.NotificationKind, code string, expiresAt time.Time) error {
	email := RenderOTPEmail(kind, code, expiresAt.Sub(s.now()))

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(email.Subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(email.HTML), Charset: aws.String("UTF-8")},
				Text: &types.Content{Data: aws.String(email.Text), Charset: aws.String("UTF-8")},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("SES send failed",
			slog.String("email", pkglogger.SanitizedEmail(to)),
			slog.String("kind", string(kind)),
			slog.Any("error", err))
		return fmt.Errorf("%w: %v", models.ErrNotificationFailure, err)
	}

	s.logger.Info("one-time code email sent",
		slog.String("email", pkglogger.SanitizedEmail(to)),
		slog.String("kind", string(kind)),
		slog.String("message_id", aws.ToString(result.MessageId)))
	return nil
}

// LogEmailSender writes codes to the log instead of sending them. For local
// development only.
type LogEmailSender struct {
	logger *slog.Logger
}

func NewLogEmailSender(logger *slog.Logger) *LogEmailSender {
	return &LogEmailSender{logger: logger}
}

func (s *LogEmailSender) SendOneTimeCode(ctx context.Context, to string, kind models.NotificationKind, code string, expiresAt time.Time) error {
	s.logger.LogAttrs(ctx, slog.LevelInfo, "one-time code email (not sent)",
		slog.String("to", to),
		slog.String("kind", string(kind)),
		slog.String("code", code),
		slog.Time("expires_at", expiresAt),
	)
	return nil
}
