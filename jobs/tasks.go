package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRFQNotify notifies the vendors invited to an RFQ.
	TaskRFQNotify = "rfq:notify"
	// TaskReorderScan raises indents for items under their reorder level.
	TaskReorderScan = "inventory:reorder-scan"
)

// RFQNotifyPayload identifies the RFQ whose vendors are notified.
type RFQNotifyPayload struct {
	RFQID int64 `json:"rfq_id"`
}

// NewRFQNotifyTask constructs an Asynq task.
func NewRFQNotifyTask(rfqID int64) (*asynq.Task, error) {
	data, err := json.Marshal(RFQNotifyPayload{RFQID: rfqID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRFQNotify, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// NewReorderScanTask builds the periodic reorder scan task.
func NewReorderScanTask() *asynq.Task {
	return asynq.NewTask(TaskReorderScan, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
}
