package services

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/BradenHooton/taskdesk/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockSESClient implements sesAPI for testing
type MockSESClient struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESClient) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, params, optFns...)
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestRenderOTPEmail(t *testing.T) {
	verify := RenderOTPEmail(models.NotificationVerification, "482913", 10*time.Minute)
	assert.Equal(t, "Your OTP Code for Task Management App", verify.Subject)
	assert.Contains(t, verify.HTML, "482913")
	assert.Contains(t, verify.HTML, "verify your email address")
	assert.Contains(t, verify.HTML, "expire in 10 minutes")
	assert.Contains(t, verify.Text, "482913")

	reset := RenderOTPEmail(models.NotificationPasswordReset, "777111", 9*time.Minute+40*time.Second)
	assert.Contains(t, reset.Subject, "password reset")
	assert.Contains(t, reset.Text, "reset your password")
	assert.Contains(t, reset.Text, "expire in 10 minutes")
}

func TestSESEmailSender_SendOneTimeCode(t *testing.T) {
	var got *ses.SendEmailInput
	client := &MockSESClient{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			got = params
			return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
		},
	}
	sender := newSESEmailSender(client, "noreply@taskdesk.test", testLogger())
	now := time.Now()
	sender.now = func() time.Time { return now }

	err := sender.SendOneTimeCode(context.Background(), "ann@x.com", models.NotificationVerification, "482913", now.Add(10*time.Minute))
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "noreply@taskdesk.test", aws.ToString(got.Source))
	assert.Equal(t, []string{"ann@x.com"}, got.Destination.ToAddresses)
	assert.Contains(t, aws.ToString(got.Message.Body.Html.Data), "482913")
	assert.Contains(t, aws.ToString(got.Message.Body.Text.Data), "expire in 10 minutes")
}

func TestSESEmailSender_Failure(t *testing.T) {
	client := &MockSESClient{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, assert.AnError
		},
	}
	sender := newSESEmailSender(client, "noreply@taskdesk.test", testLogger())

	err := sender.SendOneTimeCode(context.Background(), "ann@x.com", models.NotificationPasswordReset, "482913", time.Now().Add(10*time.Minute))
	assert.ErrorIs(t, err, models.ErrNotificationFailure)
}

func TestLogEmailSender(t *testing.T) {
	var buf bytes.Buffer
	sender := NewLogEmailSender(slog.New(slog.NewTextHandler(&buf, nil)))

	err := sender.SendOneTimeCode(context.Background(), "ann@x.com", models.NotificationVerification, "482913", time.Now().Add(10*time.Minute))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "482913")
	assert.Contains(t, buf.String(), "kind=verification")
}
