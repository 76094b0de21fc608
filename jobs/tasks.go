// Package jobs wraps the Asynq server, client and cron scheduler used for
// background work: the nightly snapshot rebuild and the dealer billing
// message fan-out.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/cemtrack/cemtrack/internal/notify"
	"github.com/cemtrack/cemtrack/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBillingMessages renders the day's dealer billing messages.
	TaskBillingMessages = "notify:billing-messages"
)

// BillingMessagesPayload selects the billing date to render. Empty means
// today.
type BillingMessagesPayload struct {
	Date string `json:"date,omitempty"`
}

// NewBillingMessagesTask constructs the Asynq task.
func NewBillingMessagesTask(payload BillingMessagesPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBillingMessages, data), nil
}

// BillingMessagesJob renders and logs the day's messages so operators can
// pick them up from the worker output or the API.
type BillingMessagesJob struct {
	service *notify.Service
	logger  *slog.Logger
	clock   func() time.Time
}

// NewBillingMessagesJob initialises the handler.
func NewBillingMessagesJob(service *notify.Service, logger *slog.Logger) *BillingMessagesJob {
	return &BillingMessagesJob{
		service: service,
		logger:  logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one render task.
func (j *BillingMessagesJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload BillingMessagesPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	date := j.clock().Truncate(24 * time.Hour)
	if payload.Date != "" {
		parsed, err := shared.ParseDate(payload.Date)
		if err != nil {
			j.logger.Warn("billing messages: bad payload", slog.Any("error", err))
			return asynq.SkipRetry
		}
		date = parsed
	}
	msgs, err := j.service.BillingMessagesForDate(ctx, date)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		j.logger.Info("billing message ready",
			slog.String("dealer", m.DealerCode), slog.String("name", m.DealerName),
			slog.String("due", m.DueDate.Format(shared.DateLayout)))
	}
	return nil
}
