// Package jobs defines background tasks and the worker that processes them.
// Delivery retries live here so a degraded notification never blocks the
// approval workflow.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/sitedesk-erp/sitedesk/internal/mail"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypePendingReminder is the daily reminder about stale pending
	// requisitions.
	TaskTypePendingReminder = "procure:pending_reminder"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	HTML    string   `json:"html,omitempty"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// EmailJob processes TaskTypeSendEmail tasks with the injected mailer.
type EmailJob struct {
	mailer mail.Mailer
	logger *slog.Logger
}

// NewEmailJob wires the mail delivery handler.
func NewEmailJob(mailer mail.Mailer, logger *slog.Logger) *EmailJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailJob{mailer: mailer, logger: logger}
}

// Handle delivers a queued email. Malformed payloads are dropped; transport
// failures are returned so asynq retries with backoff.
func (j *EmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.logger.Error("drop malformed email task", slog.Any("error", err))
		return asynq.SkipRetry
	}
	if len(payload.To) == 0 {
		j.logger.Warn("drop email task without recipients", slog.String("subject", payload.Subject))
		return asynq.SkipRetry
	}
	if err := j.mailer.Send(ctx, mail.Message{
		To:      payload.To,
		Subject: payload.Subject,
		Text:    payload.Text,
		HTML:    payload.HTML,
	}); err != nil {
		j.logger.Warn("email delivery failed, will retry",
			slog.String("subject", payload.Subject), slog.Any("error", err))
		return err
	}
	return nil
}
