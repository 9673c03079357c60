// Package jobs provides the in-memory queue behind on-demand rescrape
// requests. Jobs are process-local and vanish on restart; durable
// scheduling stays with the periodic runner.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"adwatch/internal/domain"
	"adwatch/internal/locks"
	"adwatch/internal/logger"
)

// ErrQueueFull is returned by Submit when the pending backlog is at
// capacity.
var ErrQueueFull = errors.New("job queue is full")

// pollInterval bounds how long a dispatchable job can wait when all
// workers slept through a lock release by the scheduler.
const pollInterval = 200 * time.Millisecond

// Executor runs the actual work of one job.
type Executor func(ctx context.Context, job domain.Job) (*domain.ReconcileSummary, error)

type jobEntry struct {
	job    domain.Job
	seq    int64
	cancel context.CancelFunc // non-nil while running
}

// Queue is a FIFO job queue with a fixed worker pool. Workers dispatch
// the oldest queued job whose watch key they can acquire, so jobs for
// the same watch run in submission order and never concurrently with
// each other or with the periodic scheduler.
type Queue struct {
	exec     Executor
	keyed    *locks.Keyed
	log      logger.Logger
	workers  int
	capacity int

	mu      sync.Mutex
	seq     int64
	pending []string
	jobs    map[string]*jobEntry
	order   []string // all job ids, submission order

	wake chan struct{}
	wg   sync.WaitGroup
}

func NewQueue(exec Executor, keyed *locks.Keyed, log logger.Logger, workers, capacity int) *Queue {
	if workers < 1 {
		workers = 1
	}
	if capacity < 1 {
		capacity = 64
	}
	return &Queue{
		exec:     exec,
		keyed:    keyed,
		log:      log,
		workers:  workers,
		capacity: capacity,
		jobs:     make(map[string]*jobEntry),
		wake:     make(chan struct{}, 1),
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled;
// a job in flight at that moment sees its context cancelled too.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	q.log.Info("job workers started", logger.Int("workers", q.workers))
}

// Stop waits for all workers to finish. Call after cancelling the
// context passed to Start.
func (q *Queue) Stop() {
	q.wg.Wait()
}

// Submit enqueues a job and returns its queued snapshot.
func (q *Queue) Submit(kind domain.JobKind, watchID int64) (domain.Job, error) {
	q.mu.Lock()
	if len(q.pending) >= q.capacity {
		q.mu.Unlock()
		return domain.Job{}, ErrQueueFull
	}
	q.seq++
	job := domain.Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		WatchID:   watchID,
		Status:    domain.JobQueued,
		CreatedAt: time.Now().UTC(),
	}
	q.jobs[job.ID] = &jobEntry{job: job, seq: q.seq}
	q.pending = append(q.pending, job.ID)
	q.order = append(q.order, job.ID)
	q.mu.Unlock()

	q.signal()
	q.log.Debug("job submitted",
		logger.String("job_id", job.ID),
		logger.String("kind", string(kind)),
		logger.Int64("watch_id", watchID))
	return job, nil
}

// Get returns a snapshot of one job.
func (q *Queue) Get(id string) (domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.jobs[id]
	if !ok {
		return domain.Job{}, domain.ErrNotFound
	}
	return e.job, nil
}

// List returns job snapshots, newest first, optionally filtered by
// status. An empty status matches everything.
func (q *Queue) List(status domain.JobStatus) []domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Job, 0, len(q.order))
	for i := len(q.order) - 1; i >= 0; i-- {
		e := q.jobs[q.order[i]]
		if status != "" && e.job.Status != status {
			continue
		}
		out = append(out, e.job)
	}
	return out
}

// Cancel cancels a queued job outright. For a running job the cancel is
// advisory: the job's context is cancelled and the status flips once the
// executor returns. Terminal jobs are returned unchanged.
func (q *Queue) Cancel(id string) (domain.Job, error) {
	q.mu.Lock()
	e, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return domain.Job{}, domain.ErrNotFound
	}

	switch e.job.Status {
	case domain.JobQueued:
		now := time.Now().UTC()
		e.job.Status = domain.JobCancelled
		e.job.CompletedAt = &now
		for i, pid := range q.pending {
			if pid == id {
				q.pending = append(q.pending[:i], q.pending[i+1:]...)
				break
			}
		}
	case domain.JobRunning:
		if e.cancel != nil {
			e.cancel()
		}
	}
	job := e.job
	q.mu.Unlock()

	q.log.Info("job cancel requested",
		logger.String("job_id", id),
		logger.String("status", string(job.Status)))
	return job, nil
}

// Stats reports queue depth per status.
func (q *Queue) Stats() map[domain.JobStatus]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	stats := make(map[domain.JobStatus]int)
	for _, e := range q.jobs {
		stats[e.job.Status]++
	}
	return stats
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		case <-ticker.C:
		}

		for {
			entry, jobCtx, cancel, ok := q.claim(ctx)
			if !ok {
				break
			}
			q.run(entry, jobCtx, cancel)
		}
	}
}

// claim pops the oldest queued job whose watch key is free. It marks the
// job running and acquires its key before releasing the queue lock, so
// no other worker or scheduler pass can race onto the same watch.
func (q *Queue) claim(ctx context.Context) (*jobEntry, context.Context, context.CancelFunc, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, id := range q.pending {
		e := q.jobs[id]
		if !q.keyed.TryAcquire(e.job.WatchID) {
			continue
		}
		q.pending = append(q.pending[:i], q.pending[i+1:]...)
		now := time.Now().UTC()
		e.job.Status = domain.JobRunning
		e.job.StartedAt = &now
		jobCtx, cancel := context.WithCancel(ctx)
		e.cancel = cancel
		return e, jobCtx, cancel, true
	}
	return nil, nil, nil, false
}

func (q *Queue) run(e *jobEntry, jobCtx context.Context, cancel context.CancelFunc) {
	defer cancel()

	q.mu.Lock()
	job := e.job
	q.mu.Unlock()

	sum, err := q.exec(jobCtx, job)

	q.mu.Lock()
	now := time.Now().UTC()
	e.job.CompletedAt = &now
	e.cancel = nil
	switch {
	case err == nil:
		e.job.Status = domain.JobSucceeded
		e.job.Result = sum
	case errors.Is(err, context.Canceled):
		e.job.Status = domain.JobCancelled
		e.job.Error = "cancelled"
	default:
		e.job.Status = domain.JobFailed
		e.job.Error = err.Error()
	}
	status := e.job.Status
	q.mu.Unlock()

	q.keyed.Release(job.WatchID)
	q.log.Info("job finished",
		logger.String("job_id", job.ID),
		logger.String("status", string(status)))
}
