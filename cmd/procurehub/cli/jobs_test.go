package cli

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/procurehub/procurehub/jobs"
)

type recordingEnqueuer struct {
	types  []string
	closed bool
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	r.types = append(r.types, task.Type())
	return &asynq.TaskInfo{ID: "t1", Type: task.Type()}, nil
}

func (r *recordingEnqueuer) Close() error {
	r.closed = true
	return nil
}

func TestTrigger(t *testing.T) {
	enq := &recordingEnqueuer{}
	c := NewJobsCLIWith(enq)
	ctx := context.Background()

	info, err := c.Trigger(ctx, jobs.TaskRFQNotify, "12")
	require.NoError(t, err)
	require.Equal(t, jobs.TaskRFQNotify, info.Type)

	_, err = c.Trigger(ctx, jobs.TaskReorderScan)
	require.NoError(t, err)

	_, err = c.Trigger(ctx, jobs.TaskRFQNotify)
	require.Error(t, err)
	_, err = c.Trigger(ctx, jobs.TaskRFQNotify, "abc")
	require.Error(t, err)
	_, err = c.Trigger(ctx, "gl:rebuild")
	require.Error(t, err)

	require.Equal(t, []string{jobs.TaskRFQNotify, jobs.TaskReorderScan}, enq.types)
	require.NoError(t, c.Close())
	require.True(t, enq.closed)
}
