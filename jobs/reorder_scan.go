package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/procurehub/procurehub/internal/jobs"
	"github.com/procurehub/procurehub/internal/procurement"
)

// ReorderRaiser creates the system indent for low-stock items.
type ReorderRaiser interface {
	RaiseReorderIndents(ctx context.Context) (procurement.Indent, int, error)
}

// ReorderScanJob handles inventory:reorder-scan tasks.
type ReorderScanJob struct {
	Raiser  ReorderRaiser
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReorderScanJob wires dependencies for the reorder scan.
func NewReorderScanJob(raiser ReorderRaiser, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReorderScanJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReorderScanJob{Raiser: raiser, Logger: logger, Metrics: metrics}
}

// Handle processes reorder scan tasks.
func (j *ReorderScanJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Raiser == nil {
		return errors.New("reorder scan: handler not configured")
	}
	tracker := j.Metrics.Track(TaskReorderScan)
	defer func() {
		err = tracker.End(err)
	}()

	indent, lines, err := j.Raiser.RaiseReorderIndents(ctx)
	if err != nil {
		j.Logger.Error("reorder scan", slog.Any("error", err))
		return err
	}
	if lines == 0 {
		j.Logger.Info("reorder scan found nothing to raise")
		return nil
	}
	j.Metrics.AddItems(TaskReorderScan, "indent_lines", lines)
	j.Logger.Info("reorder indent raised", slog.String("indent", indent.Number), slog.Int("lines", lines))
	return nil
}
