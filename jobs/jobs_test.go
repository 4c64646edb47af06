package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/procurehub/procurehub/internal/jobs"
	"github.com/procurehub/procurehub/internal/procurement"
	"github.com/procurehub/procurehub/internal/rbac"
	"github.com/procurehub/procurehub/internal/shared"
)

type fakeNotifier struct {
	sent  int
	err   error
	calls []int64
}

func (f *fakeNotifier) NotifyVendors(_ context.Context, rfqID int64) (int, error) {
	f.calls = append(f.calls, rfqID)
	return f.sent, f.err
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: fmt.Sprint(len(f.tasks)), Type: task.Type()}, nil
}

func TestClientEnqueuesRFQNotify(t *testing.T) {
	enq := &fakeEnqueuer{}
	var notifier procurement.Notifier = NewClientWith(enq)

	require.NoError(t, notifier.NotifyRFQ(context.Background(), 42))
	require.Len(t, enq.tasks, 1)
	require.Equal(t, TaskRFQNotify, enq.tasks[0].Type())

	var payload RFQNotifyPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.Equal(t, int64(42), payload.RFQID)
}

func TestRFQNotifyJob(t *testing.T) {
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	notifier := &fakeNotifier{sent: 2}
	job := NewRFQNotifyJob(notifier, nil, metrics)

	task, err := NewRFQNotifyTask(7)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []int64{7}, notifier.calls)

	err = job.Handle(context.Background(), asynq.NewTask(TaskRFQNotify, []byte(`{"rfq_id":0}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)

	notifier.err = fmt.Errorf("%w: rfq", shared.ErrNotFound)
	require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)

	notifier.err = errors.New("db down")
	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

type fakeRaiser struct {
	lines int
	err   error
}

func (f fakeRaiser) RaiseReorderIndents(context.Context) (procurement.Indent, int, error) {
	return procurement.Indent{Number: "IND-1"}, f.lines, f.err
}

func TestReorderScanJob(t *testing.T) {
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, NewReorderScanJob(fakeRaiser{lines: 3}, nil, metrics).Handle(context.Background(), NewReorderScanTask()))
	require.NoError(t, NewReorderScanJob(fakeRaiser{}, nil, metrics).Handle(context.Background(), NewReorderScanTask()))

	boom := errors.New("boom")
	require.ErrorIs(t, NewReorderScanJob(fakeRaiser{err: boom}, nil, metrics).Handle(context.Background(), NewReorderScanTask()), boom)

	var unset *ReorderScanJob
	require.Error(t, unset.Handle(context.Background(), NewReorderScanTask()))
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

type fakeTrigger struct {
	err   error
	calls int
}

func (f *fakeTrigger) ScanReorder(context.Context) error {
	f.calls++
	return f.err
}

func serveJobs(h *Handler, method, path string, role string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Route("/jobs", h.MountRoutes)
	req := httptest.NewRequest(method, path, nil)
	if role != "" {
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 1, Role: role}))
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestQueueHealthEndpoint(t *testing.T) {
	h := NewHandler(fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4, Retry: 1}}, nil, rbac.Middleware{}, nil)
	rr := serveJobs(h, http.MethodGet, "/jobs/health", rbac.RoleAdmin)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"pending":4`)

	require.Equal(t, http.StatusForbidden, serveJobs(h, http.MethodGet, "/jobs/health", rbac.RoleAccounts).Code)

	h = NewHandler(fakeInspector{err: errors.New("redis down")}, nil, rbac.Middleware{}, nil)
	rr = serveJobs(h, http.MethodGet, "/jobs/health", rbac.RoleStore)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestReorderScanTrigger(t *testing.T) {
	trigger := &fakeTrigger{}
	h := NewHandler(fakeInspector{}, trigger, rbac.Middleware{}, nil)

	rr := serveJobs(h, http.MethodPost, "/jobs/reorderScan", rbac.RoleStore)
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Contains(t, rr.Body.String(), `"state":"queued"`)

	trigger.err = fmt.Errorf("enqueue: %w", asynq.ErrDuplicateTask)
	rr = serveJobs(h, http.MethodPost, "/jobs/reorderScan", rbac.RoleStore)
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Contains(t, rr.Body.String(), "already queued")

	trigger.err = errors.New("redis down")
	require.Equal(t, http.StatusServiceUnavailable, serveJobs(h, http.MethodPost, "/jobs/reorderScan", rbac.RoleAdmin).Code)
	require.Equal(t, 3, trigger.calls)

	require.Equal(t, http.StatusServiceUnavailable,
		serveJobs(NewHandler(fakeInspector{}, nil, rbac.Middleware{}, nil), http.MethodPost, "/jobs/reorderScan", rbac.RoleAdmin).Code)
}

func TestClientScanReorderIsUnique(t *testing.T) {
	enq := &fakeEnqueuer{}
	require.NoError(t, NewClientWith(enq).ScanReorder(context.Background()))
	require.Len(t, enq.tasks, 1)
	require.Equal(t, TaskReorderScan, enq.tasks[0].Type())
}
