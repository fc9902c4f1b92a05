package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitedesk-erp/sitedesk/internal/mail"
)

type recordingMailer struct {
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func TestEmailJobHandleDelivers(t *testing.T) {
	mailer := &recordingMailer{}
	job := NewEmailJob(mailer, nil)

	task, err := NewSendEmailTask(SendEmailPayload{
		To:      []string{"finance@sitedesk.test"},
		Subject: "Requisition REQ-2026-0001 awaiting decision",
		Text:    "please review",
	})
	require.NoError(t, err)
	require.Equal(t, TaskTypeSendEmail, task.Type())

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{"finance@sitedesk.test"}, mailer.sent[0].To)
	assert.Equal(t, "Requisition REQ-2026-0001 awaiting decision", mailer.sent[0].Subject)
}

func TestEmailJobHandleDropsMalformed(t *testing.T) {
	mailer := &recordingMailer{}
	job := NewEmailJob(mailer, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskTypeSendEmail, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, mailer.sent)
}

func TestEmailJobHandleDropsWithoutRecipients(t *testing.T) {
	mailer := &recordingMailer{}
	job := NewEmailJob(mailer, nil)

	task, err := NewSendEmailTask(SendEmailPayload{Subject: "orphan"})
	require.NoError(t, err)

	assert.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
	assert.Empty(t, mailer.sent)
}

func TestEmailJobHandleRetriesTransportFailure(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("smtp: connection refused")}
	job := NewEmailJob(mailer, nil)

	task, err := NewSendEmailTask(SendEmailPayload{To: []string{"a@b.test"}, Subject: "s"})
	require.NoError(t, err)

	handleErr := job.Handle(context.Background(), task)
	require.Error(t, handleErr)
	assert.NotErrorIs(t, handleErr, asynq.SkipRetry)
}

func TestClientEnqueueSendEmail(t *testing.T) {
	mr := miniredis.RunT(t)
	opts := asynq.RedisClientOpt{Addr: mr.Addr()}

	client := NewClient(opts)
	defer func() { _ = client.Close() }()

	info, err := client.EnqueueSendEmail(context.Background(), SendEmailPayload{
		To:      []string{"orders@acme.test"},
		Subject: "Purchase order PO-2026-00001",
		Text:    "attached",
	})
	require.NoError(t, err)
	assert.Equal(t, QueueDefault, info.Queue)
	assert.Equal(t, TaskTypeSendEmail, info.Type)

	inspector := asynq.NewInspector(opts)
	defer func() { _ = inspector.Close() }()

	pending, err := inspector.ListPendingTasks(QueueDefault)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	var payload SendEmailPayload
	require.NoError(t, json.Unmarshal(pending[0].Payload, &payload))
	assert.Equal(t, []string{"orders@acme.test"}, payload.To)
}

func TestNewPendingReminderTask(t *testing.T) {
	task, err := NewPendingReminderTask(5, "finance@sitedesk.test")
	require.NoError(t, err)
	assert.Equal(t, TaskTypePendingReminder, task.Type())

	var payload PendingReminderPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, 5, payload.OlderThanDays)
	assert.Equal(t, "finance@sitedesk.test", payload.FinanceEmail)
}
