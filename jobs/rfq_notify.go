package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/procurehub/procurehub/internal/jobs"
	"github.com/procurehub/procurehub/internal/shared"
)

// VendorNotifier sends the notifications for one RFQ.
type VendorNotifier interface {
	NotifyVendors(ctx context.Context, rfqID int64) (int, error)
}

// RFQNotifyJob handles rfq:notify tasks.
type RFQNotifyJob struct {
	Notifier VendorNotifier
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewRFQNotifyJob wires dependencies for the notify handler.
func NewRFQNotifyJob(notifier VendorNotifier, logger *slog.Logger, metrics *jobmetrics.Metrics) *RFQNotifyJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RFQNotifyJob{Notifier: notifier, Logger: logger, Metrics: metrics}
}

// Handle processes rfq:notify tasks. A missing RFQ is not retried.
func (j *RFQNotifyJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Notifier == nil {
		return errors.New("rfq notify: handler not configured")
	}
	var payload RFQNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.RFQID <= 0 {
		return fmt.Errorf("rfq notify payload: %w", asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskRFQNotify)
	defer func() {
		err = tracker.End(err)
	}()

	sent, err := j.Notifier.NotifyVendors(ctx, payload.RFQID)
	if errors.Is(err, shared.ErrNotFound) {
		j.Logger.Warn("rfq vanished before notification", slog.Int64("rfq_id", payload.RFQID))
		return fmt.Errorf("rfq %d: %w", payload.RFQID, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}
	j.Metrics.AddItems(TaskRFQNotify, "notifications", sent)
	j.Logger.Info("rfq vendors notified", slog.Int64("rfq_id", payload.RFQID), slog.Int("sent", sent))
	return nil
}
