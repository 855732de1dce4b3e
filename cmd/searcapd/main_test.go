package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoony8355/searcap/internal/config"
	"github.com/hoony8355/searcap/internal/database"
	"github.com/hoony8355/searcap/internal/models"
	"github.com/hoony8355/searcap/internal/queue"
)

type fakeJobStore struct {
	mu         sync.Mutex
	unfinished []*database.Job
	listErr    error
	statuses   map[string][]database.JobStatus
}

func newFakeJobStore(jobs ...*database.Job) *fakeJobStore {
	return &fakeJobStore{
		unfinished: jobs,
		statuses:   make(map[string][]database.JobStatus),
	}
}

func (f *fakeJobStore) ListUnfinishedJobs(ctx context.Context) ([]*database.Job, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.unfinished, nil
}

func (f *fakeJobStore) UpdateJobStatus(ctx context.Context, id string, status database.JobStatus, jobErr error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = append(f.statuses[id], status)
	return nil
}

func (f *fakeJobStore) transitions(id string) []database.JobStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]database.JobStatus(nil), f.statuses[id]...)
}

type fakeRunner struct {
	mu   sync.Mutex
	runs []*queue.Task
}

func (f *fakeRunner) Run(ctx context.Context, task *queue.Task) ([]*models.CaptureRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, task)
	return nil, nil
}

func (f *fakeRunner) ran() []*queue.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*queue.Task(nil), f.runs...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecoverJobsRequeuesUnfinished(t *testing.T) {
	store := newFakeJobStore(
		&database.Job{ID: "job-1", Keyword: "아이폰", Surface: models.SurfaceSearch, Status: database.JobPending},
		&database.Job{ID: "job-2", Keyword: "노트북", Surface: models.SurfaceShopping, Status: database.JobRunning},
	)
	q := queue.NewInMemoryQueue()
	defer q.Close()

	require.NoError(t, recoverJobs(context.Background(), testLogger(), store, q))
	assert.Equal(t, 2, q.Size())

	first, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "job-1", first.JobID)
	assert.Equal(t, "아이폰", first.Keyword)
	assert.Equal(t, models.SurfaceSearch, first.Surface)

	second, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "job-2", second.JobID)
	assert.Equal(t, models.SurfaceShopping, second.Surface)

	// The interrupted running job is reset before it is requeued.
	assert.Equal(t, []database.JobStatus{database.JobPending}, store.transitions("job-2"))
	assert.Empty(t, store.transitions("job-1"))
}

func TestRecoverJobsNothingToDo(t *testing.T) {
	q := queue.NewInMemoryQueue()
	defer q.Close()

	require.NoError(t, recoverJobs(context.Background(), testLogger(), newFakeJobStore(), q))
	assert.Equal(t, 0, q.Size())
}

func TestRecoverJobsListError(t *testing.T) {
	store := newFakeJobStore()
	store.listErr = errors.New("connection refused")

	q := queue.NewInMemoryQueue()
	defer q.Close()

	err := recoverJobs(context.Background(), testLogger(), store, q)
	assert.ErrorIs(t, err, store.listErr)
}

func TestWorkerRequeuesTaskOnShutdown(t *testing.T) {
	cfg := &config.Config{}
	cfg.Capture.RateLimitMin = time.Minute
	cfg.Capture.RateLimitMax = time.Minute

	q := queue.NewInMemoryQueue()
	defer q.Close()

	first := queue.NewTask("아이폰", models.SurfaceSearch)
	first.JobID = "job-1"
	second := queue.NewTask("노트북", models.SurfaceSearch)
	second.JobID = "job-2"
	require.NoError(t, q.Push(first))
	require.NoError(t, q.Push(second))

	store := newFakeJobStore()
	runner := &fakeRunner{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runWorker(ctx, testLogger(), cfg, store, q, runner)
		close(done)
	}()

	// The first task passes the limiter immediately; the second blocks on
	// the one-minute delay until the shutdown fires.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}

	ran := runner.ran()
	require.Len(t, ran, 1)
	assert.Equal(t, "job-1", ran[0].JobID)
	assert.Equal(t, []database.JobStatus{database.JobRunning, database.JobCompleted}, store.transitions("job-1"))

	// The second task went back on the queue instead of vanishing; its job
	// is still pending for the next start.
	require.Equal(t, 1, q.Size())
	task, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "job-2", task.JobID)
	assert.Empty(t, store.transitions("job-2"))
}
