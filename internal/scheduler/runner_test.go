package scheduler

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adwatch/internal/config"
	"adwatch/internal/domain"
	"adwatch/internal/fetch"
	"adwatch/internal/jobs"
	"adwatch/internal/locks"
	"adwatch/internal/logger"
	"adwatch/internal/notify"
	"adwatch/internal/reconcile"
	"adwatch/internal/repos"
)

type fakeFetcher struct {
	mu       sync.Mutex
	calls    int
	listings []fetch.RawListing
	err      error
}

func (f *fakeFetcher) FetchListings(context.Context, string, string) ([]fetch.RawListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.listings, nil
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFetcher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type rig struct {
	runner  *Runner
	proc    *Processor
	watches *repos.WatchRepo
	keyed   *locks.Keyed
	out     *bytes.Buffer
	watchID int64
}

func newRig(t *testing.T, ff fetch.Fetcher) *rig {
	t.Helper()

	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	watches := repos.NewWatchRepo(db)
	id, err := watches.Create("https://market.example/search?q=gpu")
	require.NoError(t, err)

	out := &bytes.Buffer{}
	f := notify.NewFormatter("adwatch", "Ft")
	disp := notify.NewDispatcher(map[domain.ChannelKind]notify.Channel{
		domain.ChannelConsole: notify.NewConsoleChannel(out, f),
	}, logger.NewNop(), time.Millisecond, 2*time.Millisecond, 1)

	eng := reconcile.New(repos.NewAdRepo(db), logger.NewNop(), false)
	proc := NewProcessor(watches, ff, fetch.NewAgentPool([]string{"test-agent"}), eng, disp, logger.NewNop())

	cfg := config.SchedulerConfig{
		CheckInterval:   time.Minute,
		JitterFraction:  0.2,
		RequestDelayMin: 0,
		RequestDelayMax: 0,
		MaxRetries:      3,
		BaseBackoff:     time.Second,
		MaxBackoff:      4 * time.Second,
	}
	keyed := locks.NewKeyed()
	return &rig{
		runner:  NewRunner(watches, proc, keyed, logger.NewNop(), cfg),
		proc:    proc,
		watches: watches,
		keyed:   keyed,
		out:     out,
		watchID: id,
	}
}

func TestPass_ProcessesDueWatch(t *testing.T) {
	ff := &fakeFetcher{listings: []fetch.RawListing{{ID: "a1", Title: "GPU", Price: "120 000 Ft"}}}
	r := newRig(t, ff)

	r.runner.pass(context.Background(), time.Now())

	assert.Equal(t, 1, ff.count())
	w, err := r.watches.Get(r.watchID)
	require.NoError(t, err)
	assert.Greater(t, w.LastChecked, int64(0))
}

func TestPass_SkipsWatchNotDue(t *testing.T) {
	ff := &fakeFetcher{}
	r := newRig(t, ff)

	r.runner.pass(context.Background(), time.Now())
	require.Equal(t, 1, ff.count())

	// Just checked, interval has not elapsed.
	r.runner.pass(context.Background(), time.Now())
	assert.Equal(t, 1, ff.count())
}

func TestPass_SkipsHeldWatch(t *testing.T) {
	ff := &fakeFetcher{}
	r := newRig(t, ff)

	require.True(t, r.keyed.TryAcquire(r.watchID))
	r.runner.pass(context.Background(), time.Now())
	assert.Equal(t, 0, ff.count())
	assert.True(t, r.keyed.Held(r.watchID), "skip must not release a lock it never took")

	r.keyed.Release(r.watchID)
	r.runner.pass(context.Background(), time.Now())
	assert.Equal(t, 1, ff.count())
}

func TestPass_BackoffThenPark(t *testing.T) {
	ff := &fakeFetcher{err: errors.New("source down")}
	r := newRig(t, ff)
	ctx := context.Background()
	t0 := time.Now()

	r.runner.pass(ctx, t0)
	assert.Equal(t, 1, ff.count())

	// Gated by the first backoff (1s).
	r.runner.pass(ctx, t0)
	assert.Equal(t, 1, ff.count())

	r.runner.pass(ctx, t0.Add(1100*time.Millisecond))
	assert.Equal(t, 2, ff.count())

	// Second backoff doubles to 2s.
	r.runner.pass(ctx, t0.Add(1200*time.Millisecond))
	assert.Equal(t, 2, ff.count())

	r.runner.pass(ctx, t0.Add(3200*time.Millisecond))
	assert.Equal(t, 3, ff.count())

	// Third failure backs off 4s; the fourth exhausts the retries.
	r.runner.pass(ctx, t0.Add(7300*time.Millisecond))
	assert.Equal(t, 4, ff.count())

	// Parked for a full interval now.
	r.runner.pass(ctx, t0.Add(20*time.Second))
	assert.Equal(t, 4, ff.count())

	r.runner.pass(ctx, t0.Add(7300*time.Millisecond).Add(time.Minute).Add(time.Millisecond))
	assert.Equal(t, 5, ff.count())
}

func TestPass_SuccessResetsFailureState(t *testing.T) {
	ff := &fakeFetcher{err: errors.New("source down")}
	r := newRig(t, ff)
	ctx := context.Background()
	t0 := time.Now()

	r.runner.pass(ctx, t0)
	require.Equal(t, 1, ff.count())

	ff.setErr(nil)
	r.runner.pass(ctx, t0.Add(1100*time.Millisecond))
	require.Equal(t, 2, ff.count())

	r.runner.mu.Lock()
	defer r.runner.mu.Unlock()
	assert.Empty(t, r.runner.state)
}

func TestPass_DeliversEventsToTargets(t *testing.T) {
	ff := &fakeFetcher{listings: []fetch.RawListing{{ID: "a1", Title: "RTX 3080", Price: "185 000 Ft"}}}
	r := newRig(t, ff)

	w, err := r.watches.Get(r.watchID)
	require.NoError(t, err)
	w.Targets = []domain.NotificationTarget{{Kind: domain.ChannelConsole, Address: "deals"}}
	require.NoError(t, r.watches.Update(w))

	r.runner.pass(context.Background(), time.Now())

	out := r.out.String()
	assert.Contains(t, out, "[deals]")
	assert.Contains(t, out, "New listing: RTX 3080")
}

func TestTick_WithinJitterBounds(t *testing.T) {
	r := newRig(t, &fakeFetcher{})
	r.runner.cfg.CheckInterval = 10 * time.Second
	r.runner.cfg.JitterFraction = 0.2

	for i := 0; i < 100; i++ {
		d := r.runner.tick()
		assert.GreaterOrEqual(t, d, 8*time.Second)
		assert.LessOrEqual(t, d, 12*time.Second)
	}
}

func TestRequestDelay_WithinConfiguredRange(t *testing.T) {
	r := newRig(t, &fakeFetcher{})
	r.runner.cfg.RequestDelayMin = time.Millisecond
	r.runner.cfg.RequestDelayMax = 3 * time.Millisecond

	for i := 0; i < 100; i++ {
		d := r.runner.requestDelay()
		assert.GreaterOrEqual(t, d, time.Millisecond)
		assert.LessOrEqual(t, d, 3*time.Millisecond)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	r := newRig(t, &fakeFetcher{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.runner.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancel")
	}
}

// gateFetcher blocks its first fetch until released so a test can hold a
// watch mid-check.
type gateFetcher struct {
	started chan struct{}
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (g *gateFetcher) FetchListings(context.Context, string, string) ([]fetch.RawListing, error) {
	g.mu.Lock()
	g.calls++
	first := g.calls == 1
	g.mu.Unlock()
	if first {
		g.started <- struct{}{}
		<-g.release
	}
	return []fetch.RawListing{{ID: "a1", Title: "GPU", Price: "120 000 Ft"}}, nil
}

func (g *gateFetcher) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func waitJob(t *testing.T, q *jobs.Queue, id string, want domain.JobStatus) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		j, err := q.Get(id)
		require.NoError(t, err)
		if j.Status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", id, want)
}

// A rescrape job and the periodic loop contend for the same watch: the
// loop must skip the watch while the job holds it and process it again
// once the job is done.
func TestPass_SerializedWithRescrapeJob(t *testing.T) {
	gf := &gateFetcher{started: make(chan struct{}, 1), release: make(chan struct{})}
	r := newRig(t, gf)

	exec := func(ctx context.Context, job domain.Job) (*domain.ReconcileSummary, error) {
		w, err := r.watches.Get(job.WatchID)
		if err != nil {
			return nil, err
		}
		sum, err := r.proc.Process(ctx, w)
		if err != nil {
			return nil, err
		}
		return &sum, nil
	}
	q := jobs.NewQueue(exec, r.keyed, logger.NewNop(), 1, 4)
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	defer q.Stop()
	defer cancel()

	job, err := q.Submit(domain.JobKindRescrape, r.watchID)
	require.NoError(t, err)

	select {
	case <-gf.started:
	case <-time.After(3 * time.Second):
		t.Fatal("job never reached the fetch stage")
	}

	r.runner.pass(ctx, time.Now())
	assert.Equal(t, 1, gf.count(), "pass must not touch a watch a job is processing")
	running, err := q.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobRunning, running.Status)

	close(gf.release)
	waitJob(t, q, job.ID, domain.JobSucceeded)
	assert.False(t, r.keyed.Held(r.watchID))

	require.NoError(t, r.watches.MarkChecked(r.watchID, 0))
	r.runner.pass(ctx, time.Now())
	assert.Equal(t, 2, gf.count())
}
