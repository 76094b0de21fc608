package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/cemtrack/cemtrack/internal/shared"
)

// TaskRebuild is the queue task type for snapshot rebuilds.
const TaskRebuild = "snapshot:rebuild"

// RebuildPayload parameterizes a rebuild. An empty Through means today.
type RebuildPayload struct {
	Through string `json:"through,omitempty"`
}

// NewRebuildTask constructs the Asynq task.
func NewRebuildTask(payload RebuildPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRebuild, data), nil
}

// Job runs snapshot rebuilds off the queue.
type Job struct {
	builder *Builder
	logger  *slog.Logger
	clock   func() time.Time
}

// NewJob initialises the rebuild handler.
func NewJob(builder *Builder, logger *slog.Logger) *Job {
	return &Job{
		builder: builder,
		logger:  logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one rebuild task.
func (j *Job) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.builder == nil {
		return errors.New("snapshot: job not configured")
	}
	var payload RebuildPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	through := dateOnly(j.clock())
	if payload.Through != "" {
		parsed, err := shared.ParseDate(payload.Through)
		if err != nil {
			j.logger.Warn("snapshot rebuild: bad payload", slog.Any("error", err))
			return asynq.SkipRetry
		}
		through = parsed
	}
	start := j.clock()
	if err := j.builder.Rebuild(ctx, through); err != nil {
		j.logger.Error("snapshot rebuild", slog.Any("error", err))
		return err
	}
	j.logger.Info("snapshot rebuild done",
		slog.String("through", through.Format(shared.DateLayout)),
		slog.Duration("took", j.clock().Sub(start)))
	return nil
}
