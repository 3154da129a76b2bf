package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ledgerline/ledgerline/internal/billing/recurring"
	"github.com/ledgerline/ledgerline/internal/observability"
)

// RecurringSweepJob runs the recurring invoice generator over all due
// schedules.
type RecurringSweepJob struct {
	Service *recurring.Service
	Logger  *slog.Logger
	Metrics *observability.Metrics
	clock   func() time.Time
}

// NewRecurringSweepJob initialises the sweep handler. metrics may be nil.
func NewRecurringSweepJob(service *recurring.Service, logger *slog.Logger, metrics *observability.Metrics) *RecurringSweepJob {
	return &RecurringSweepJob{
		Service: service,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			now := time.Now().UTC()
			return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		},
	}
}

// Handle executes one sweep. The date in the payload pins the sweep day for
// replays; empty means today.
func (j *RecurringSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("recurring sweep: handler not configured")
	}
	var payload RecurringSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	day := j.clock()
	if payload.Date != "" {
		parsed, err := time.Parse("2006-01-02", payload.Date)
		if err != nil {
			return asynq.SkipRetry
		}
		day = parsed
	}

	logger := j.logger().With(slog.String("day", day.Format("2006-01-02")))
	logger.Info("starting recurring sweep")

	report, err := j.Service.ProcessDue(ctx, day)
	if err != nil {
		logger.Error("recurring sweep failed", slog.Any("error", err))
		return err
	}

	j.Metrics.ObserveSweep(report.Generated, report.Failed)
	logger.Info("recurring sweep finished",
		slog.Int("processed", report.Processed),
		slog.Int("generated", report.Generated),
		slog.Int("deactivated", report.Deactivated),
		slog.Int("failed", report.Failed),
	)
	return nil
}

func (j *RecurringSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
