// Package scheduler drives periodic checking of watches. The runner owns
// the tick loop and per-watch failure state; the processor runs one
// complete check for one watch.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"adwatch/internal/domain"
	"adwatch/internal/fetch"
	"adwatch/internal/logger"
	"adwatch/internal/notify"
	"adwatch/internal/reconcile"
	"adwatch/internal/repos"
)

// Processor runs the fetch, reconcile, notify, mark-checked pipeline for
// a single watch. It is shared between the periodic runner and on-demand
// rescrape jobs.
type Processor struct {
	watches    *repos.WatchRepo
	fetcher    fetch.Fetcher
	agents     *fetch.AgentPool
	engine     *reconcile.Engine
	dispatcher *notify.Dispatcher
	log        logger.Logger
}

func NewProcessor(
	watches *repos.WatchRepo,
	fetcher fetch.Fetcher,
	agents *fetch.AgentPool,
	engine *reconcile.Engine,
	dispatcher *notify.Dispatcher,
	log logger.Logger,
) *Processor {
	return &Processor{
		watches:    watches,
		fetcher:    fetcher,
		agents:     agents,
		engine:     engine,
		dispatcher: dispatcher,
		log:        log,
	}
}

// Process performs one check of the watch. Delivery failures are logged
// by the dispatcher but do not fail the check; the watch is marked
// checked whenever reconciliation completed. A panic anywhere in the
// pipeline is recovered and reported as a check failure so neither the
// periodic loop nor a job worker goes down with one watch.
func (p *Processor) Process(ctx context.Context, watch domain.Watch) (sum domain.ReconcileSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("watch check panic recovered",
				logger.Int64("watch_id", watch.ID),
				logger.Any("panic", r))
			err = fmt.Errorf("watch check panicked: %v", r)
		}
	}()

	raws, err := p.fetcher.FetchListings(ctx, watch.URL, p.agents.Pick())
	if err != nil {
		return sum, err
	}
	listings := fetch.NormalizeAll(raws, time.Now())

	events, sum, err := p.engine.Reconcile(ctx, watch, listings)
	if err != nil {
		return sum, err
	}

	if len(events) > 0 && len(watch.Targets) > 0 {
		p.dispatcher.Dispatch(ctx, watch.Targets, events)
	}

	if err := p.watches.MarkChecked(watch.ID, time.Now().Unix()); err != nil {
		return sum, &domain.RepositoryError{Op: "mark watch checked", Err: err}
	}

	p.log.Info("watch checked",
		logger.Int64("watch_id", watch.ID),
		logger.Int("found", sum.Found),
		logger.Int("new", sum.New),
		logger.Int("price_changed", sum.PriceChanged),
		logger.Int("deactivated", sum.Deactivated))
	return sum, nil
}
