// Package cli holds operator helpers behind the procurehub subcommands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/hibiken/asynq"

	"github.com/procurehub/procurehub/jobs"
)

// Enqueuer is the subset of *asynq.Client used by JobsCLI.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// JobsCLI triggers background tasks by hand, e.g. to re-send RFQ notices.
type JobsCLI struct {
	client Enqueuer
}

// NewJobsCLI connects to the asynq broker at redisAddr.
func NewJobsCLI(redisAddr string) *JobsCLI {
	return &JobsCLI{client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})}
}

// NewJobsCLIWith uses an existing enqueuer.
func NewJobsCLIWith(client Enqueuer) *JobsCLI {
	return &JobsCLI{client: client}
}

// Close releases the broker connection.
func (c *JobsCLI) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Trigger enqueues a supported task by name. rfq:notify takes the RFQ ID as
// its only argument.
func (c *JobsCLI) Trigger(ctx context.Context, name string, args ...string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var task *asynq.Task
	switch name {
	case jobs.TaskRFQNotify:
		if len(args) != 1 {
			return nil, errors.New("jobs cli: rfq:notify needs an rfq id")
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("jobs cli: invalid rfq id %q", args[0])
		}
		if task, err = jobs.NewRFQNotifyTask(id); err != nil {
			return nil, err
		}
	case jobs.TaskReorderScan:
		task = jobs.NewReorderScanTask()
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	return c.client.EnqueueContext(ctx, task)
}
