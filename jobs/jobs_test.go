package jobs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockflow/internal/items"
	"github.com/odyssey-erp/stockflow/internal/platform/httpx"
	"github.com/odyssey-erp/stockflow/internal/shared"
)

type stubItems map[int64]items.Item

func (s stubItems) Get(_ context.Context, id int64) (items.Item, error) {
	it, ok := s[id]
	if !ok {
		return items.Item{}, items.ErrNotFound
	}
	return it, nil
}

type recordingMetrics struct {
	tasks  []string
	failed int
}

func (m *recordingMetrics) ObserveJob(task string, err error) {
	m.tasks = append(m.tasks, task)
	if err != nil {
		m.failed++
	}
}

type stubCleaner struct {
	removed   int64
	err       error
	retention time.Duration
}

func (c *stubCleaner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	c.retention = olderThan
	return c.removed, c.err
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})), &buf
}

func TestLowStockJobWarnsAtThreshold(t *testing.T) {
	logger, buf := bufferLogger()
	metrics := &recordingMetrics{}
	job := NewLowStockJob(stubItems{
		7: {ID: 7, LocationID: 1, Name: "Flour", Quantity: 5, MinThreshold: 5},
	}, logger, metrics)

	task, err := NewLowStockCheckTask(7)
	require.NoError(t, err)
	require.Equal(t, TaskLowStockCheck, task.Type())

	require.NoError(t, job.Handle(context.Background(), task))
	require.Contains(t, buf.String(), "item at or below threshold")
	require.Contains(t, buf.String(), "item_id=7")
	require.Equal(t, []string{TaskLowStockCheck}, metrics.tasks)
	require.Zero(t, metrics.failed)
}

func TestLowStockJobQuietAboveThreshold(t *testing.T) {
	logger, buf := bufferLogger()
	job := NewLowStockJob(stubItems{
		7: {ID: 7, Name: "Flour", Quantity: 6, MinThreshold: 5},
	}, logger, nil)

	task, err := NewLowStockCheckTask(7)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.NotContains(t, buf.String(), "threshold")
}

func TestLowStockJobToleratesDeletedItem(t *testing.T) {
	logger, _ := bufferLogger()
	job := NewLowStockJob(stubItems{}, logger, nil)

	task, err := NewLowStockCheckTask(99)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
}

func TestLowStockJobSkipsRetryOnBadPayload(t *testing.T) {
	metrics := &recordingMetrics{}
	job := NewLowStockJob(stubItems{}, slog.New(slog.DiscardHandler), metrics)

	err := job.Handle(context.Background(), asynq.NewTask(TaskLowStockCheck, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Equal(t, 1, metrics.failed)

	_, err = NewLowStockCheckTask(0)
	require.Error(t, err)
}

func TestIdempotencyCleanupJob(t *testing.T) {
	logger, buf := bufferLogger()
	cleaner := &stubCleaner{removed: 4}
	metrics := &recordingMetrics{}
	job := NewIdempotencyCleanupJob(cleaner, 48*time.Hour, logger, metrics)

	require.NoError(t, job.Handle(context.Background(), NewIdempotencyCleanupTask()))
	require.Equal(t, 48*time.Hour, cleaner.retention)
	require.Contains(t, buf.String(), "removed=4")
	require.Equal(t, []string{TaskIdempotencyCleanup}, metrics.tasks)

	cleaner.err = errors.New("connection reset")
	require.Error(t, job.Handle(context.Background(), NewIdempotencyCleanupTask()))
	require.Equal(t, 1, metrics.failed)

	zero := NewIdempotencyCleanupJob(cleaner, 0, logger, nil)
	require.Error(t, zero.Handle(context.Background(), NewIdempotencyCleanupTask()))
}

func TestClientEnqueueCollapsesDuplicates(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()}, time.Minute)
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	require.NoError(t, client.EnqueueLowStockCheck(ctx, 7))
	require.NoError(t, client.EnqueueLowStockCheck(ctx, 7))
	require.NoError(t, client.EnqueueLowStockCheck(ctx, 8))

	pending, err := mr.List("asynq:{default}:pending")
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.Error(t, client.EnqueueLowStockCheck(ctx, -1))
}

type stubInspector map[string]*asynq.QueueInfo

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	info, ok := s[queue]
	if !ok {
		return nil, asynq.ErrQueueNotFound
	}
	return info, nil
}

func TestHealthHandler(t *testing.T) {
	h := NewHandler(stubInspector{QueueDefault: {Queue: QueueDefault, Pending: 3, Retry: 1}}, slog.New(slog.DiscardHandler))
	r := chi.NewRouter()
	r.Use(httpx.ActorMiddleware)
	r.Route("/jobs", h.MountRoutes)

	req := httptest.NewRequest(http.MethodGet, "/jobs/health", nil)
	req.Header.Set(shared.HeaderUserID, "admin-1")
	req.Header.Set(shared.HeaderUserRole, shared.RoleAdmin)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[
		{"queue":"default","pending":3,"active":0,"retry":1},
		{"queue":"maintenance","pending":0,"active":0,"retry":0}
	]`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/jobs/health", nil)
	req.Header.Set(shared.HeaderUserID, "staff-1")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
