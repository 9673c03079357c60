package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"adwatch/internal/config"
	"adwatch/internal/domain"
	"adwatch/internal/locks"
	"adwatch/internal/logger"
	"adwatch/internal/repos"
)

// watchState tracks consecutive failures for one watch between passes.
// nextAttempt gates retries so a failing watch backs off without ever
// blocking the loop for the others.
type watchState struct {
	failures    int
	nextAttempt time.Time
}

// Runner wakes up on a jittered interval, finds due watches and processes
// them one at a time with a polite random delay between source requests.
// Watches currently held by a rescrape job are skipped and picked up on a
// later pass. The loop exits only when its context is cancelled.
type Runner struct {
	watches *repos.WatchRepo
	proc    *Processor
	keyed   *locks.Keyed
	log     logger.Logger
	cfg     config.SchedulerConfig

	mu    sync.Mutex
	state map[int64]*watchState
}

func NewRunner(watches *repos.WatchRepo, proc *Processor, keyed *locks.Keyed, log logger.Logger, cfg config.SchedulerConfig) *Runner {
	return &Runner{
		watches: watches,
		proc:    proc,
		keyed:   keyed,
		log:     log,
		cfg:     cfg,
		state:   make(map[int64]*watchState),
	}
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	r.log.Info("scheduler started",
		logger.Duration("check_interval", r.cfg.CheckInterval),
		logger.Float64("jitter", r.cfg.JitterFraction))

	for {
		r.pass(ctx, time.Now())

		timer := time.NewTimer(r.tick())
		select {
		case <-ctx.Done():
			timer.Stop()
			r.log.Info("scheduler stopped")
			return
		case <-timer.C:
		}
	}
}

// pass processes every due watch once. Errors are absorbed into per-watch
// backoff state; nothing here stops the loop.
func (r *Runner) pass(ctx context.Context, now time.Time) {
	if ctx.Err() != nil {
		return
	}

	watches, err := r.watches.List()
	if err != nil {
		r.log.Error("list watches", logger.Error(err))
		return
	}

	due := make([]domain.Watch, 0, len(watches))
	for _, w := range watches {
		if w.Due(now, r.cfg.CheckInterval) && r.allowed(w.ID, now) {
			due = append(due, w)
		}
	}
	if len(due) == 0 {
		r.log.Debug("no watches due")
		return
	}
	r.log.Info("processing due watches", logger.Int("count", len(due)))

	for i, w := range due {
		if ctx.Err() != nil {
			return
		}
		if !r.keyed.TryAcquire(w.ID) {
			r.log.Debug("watch busy, skipping", logger.Int64("watch_id", w.ID))
			continue
		}
		_, err := r.proc.Process(ctx, w)
		r.keyed.Release(w.ID)

		if err != nil {
			r.noteFailure(w.ID, now, err)
		} else {
			r.noteSuccess(w.ID)
		}

		if i < len(due)-1 {
			if !sleepCtx(ctx, r.requestDelay()) {
				return
			}
		}
	}
}

func (r *Runner) allowed(id int64, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.state[id]
	return !ok || !now.Before(st.nextAttempt)
}

func (r *Runner) noteSuccess(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.state, id)
}

func (r *Runner) noteFailure(id int64, now time.Time, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.state[id]
	if !ok {
		st = &watchState{}
		r.state[id] = st
	}
	st.failures++

	if st.failures > r.cfg.MaxRetries {
		// Retries exhausted. Park the watch for a whole interval and
		// start over with a clean slate afterwards.
		st.nextAttempt = now.Add(r.cfg.CheckInterval)
		st.failures = 0
		r.log.Error("watch keeps failing, parking for a full interval",
			logger.Int64("watch_id", id),
			logger.Duration("park", r.cfg.CheckInterval),
			logger.Error(cause))
		return
	}

	backoff := r.cfg.BaseBackoff << uint(st.failures-1)
	if backoff > r.cfg.MaxBackoff || backoff <= 0 {
		backoff = r.cfg.MaxBackoff
	}
	st.nextAttempt = now.Add(backoff)
	r.log.Warn("watch check failed",
		logger.Int64("watch_id", id),
		logger.Int("attempt", st.failures),
		logger.Int("max_retries", r.cfg.MaxRetries),
		logger.Duration("backoff", backoff),
		logger.Error(cause))
}

// tick spreads wakeups by the configured jitter fraction so multiple
// instances do not hammer the source in lockstep.
func (r *Runner) tick() time.Duration {
	j := r.cfg.JitterFraction
	if j <= 0 {
		return r.cfg.CheckInterval
	}
	factor := 1 + (rand.Float64()*2-1)*j
	d := time.Duration(float64(r.cfg.CheckInterval) * factor)
	if d < time.Second {
		d = time.Second
	}
	return d
}

func (r *Runner) requestDelay() time.Duration {
	lo, hi := r.cfg.RequestDelayMin, r.cfg.RequestDelayMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)+1))
}

// sleepCtx reports false when ctx was cancelled while waiting.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
