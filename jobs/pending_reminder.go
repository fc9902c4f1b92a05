package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitedesk-erp/sitedesk/internal/mail"
)

// PendingReminderPayload configures the stale-requisition reminder.
type PendingReminderPayload struct {
	OlderThanDays int    `json:"older_than_days"`
	FinanceEmail  string `json:"finance_email"`
}

// NewPendingReminderTask constructs the daily reminder task.
func NewPendingReminderTask(olderThanDays int, financeEmail string) (*asynq.Task, error) {
	data, err := json.Marshal(PendingReminderPayload{OlderThanDays: olderThanDays, FinanceEmail: financeEmail})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePendingReminder, data), nil
}

// PendingReminderJob emails finance a digest of requisitions that have sat
// pending longer than the configured age.
type PendingReminderJob struct {
	pool   *pgxpool.Pool
	mailer mail.Mailer
	logger *slog.Logger
	clock  func() time.Time
}

// NewPendingReminderJob wires dependencies for the reminder handler.
func NewPendingReminderJob(pool *pgxpool.Pool, mailer mail.Mailer, logger *slog.Logger) *PendingReminderJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &PendingReminderJob{pool: pool, mailer: mailer, logger: logger, clock: time.Now}
}

type staleRequisition struct {
	Number      string
	TotalAmount string
	Age         int
}

// Handle processes reminder tasks.
func (j *PendingReminderJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.pool == nil {
		return errors.New("pending reminder: handler not configured")
	}
	var payload PendingReminderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.OlderThanDays <= 0 {
		payload.OlderThanDays = 3
	}
	if payload.FinanceEmail == "" {
		j.logger.Warn("pending reminder without finance address, skipping")
		return asynq.SkipRetry
	}

	cutoff := j.clock().AddDate(0, 0, -payload.OlderThanDays)
	rows, err := j.pool.Query(ctx, `SELECT number, total_amount,
		EXTRACT(DAY FROM NOW() - created_at)::int
	FROM requisitions WHERE status = 'pending' AND created_at < $1
	ORDER BY created_at ASC`, cutoff)
	if err != nil {
		return err
	}
	defer rows.Close()

	var stale []staleRequisition
	for rows.Next() {
		var s staleRequisition
		if err := rows.Scan(&s.Number, &s.TotalAmount, &s.Age); err != nil {
			return err
		}
		stale = append(stale, s)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d requisition(s) have been pending for more than %d days:\n\n",
		len(stale), payload.OlderThanDays)
	for _, s := range stale {
		fmt.Fprintf(&b, "  %s  total %s  pending %d day(s)\n", s.Number, s.TotalAmount, s.Age)
	}

	err = j.mailer.Send(ctx, mail.Message{
		To:      []string{payload.FinanceEmail},
		Subject: fmt.Sprintf("Pending requisitions awaiting decision (%d)", len(stale)),
		Text:    b.String(),
	})
	if err != nil {
		j.logger.Warn("reminder delivery failed, will retry", slog.Any("error", err))
		return err
	}
	j.logger.Info("pending requisition reminder sent", slog.Int("count", len(stale)))
	return nil
}
