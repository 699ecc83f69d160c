package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/tallerpro/tallerpro/internal/alerts"
	"github.com/tallerpro/tallerpro/internal/settings"
)

// ShiftSweepJob raises alerts for cash shifts left open beyond the configured
// threshold.
type ShiftSweepJob struct {
	alerts   *alerts.Service
	settings *settings.Service
	logger   *slog.Logger
	metrics  *Metrics
}

// NewShiftSweepJob constructs the job.
func NewShiftSweepJob(alertsSvc *alerts.Service, settingsSvc *settings.Service, logger *slog.Logger, metrics *Metrics) *ShiftSweepJob {
	return &ShiftSweepJob{alerts: alertsSvc, settings: settingsSvc, logger: logger, metrics: metrics}
}

// Handle processes one TaskTypeShiftSweep task.
func (j *ShiftSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.metrics.Track("shift_sweep")
	values, err := j.settings.Get(ctx)
	if err != nil {
		return tracker.End(err)
	}
	raised, err := j.alerts.SweepLongShifts(ctx, values.ShiftLongThresholdHours)
	if err != nil {
		return tracker.End(err)
	}
	if raised > 0 {
		j.metrics.AddAlertsRaised("TURNO_LARGO", raised)
		j.logger.Info("long shift sweep raised alerts", slog.Int("count", raised))
	}
	return tracker.End(nil)
}
