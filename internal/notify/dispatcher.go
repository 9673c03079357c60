package notify

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"adwatch/internal/domain"
	"adwatch/internal/logger"
)

// Result records the outcome of delivering one event to one target.
type Result struct {
	Target   domain.NotificationTarget
	Event    domain.Event
	Attempts int
	Err      error
}

// Dispatcher fans events out to a watch's targets. Failures are retried
// with exponential backoff and jitter; an explicit Retry-After hint from
// the channel overrides the computed delay. One misbehaving target never
// blocks delivery to the others.
type Dispatcher struct {
	channels    map[domain.ChannelKind]Channel
	log         logger.Logger
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
}

func NewDispatcher(channels map[domain.ChannelKind]Channel, log logger.Logger, baseDelay, maxDelay time.Duration, maxAttempts int) *Dispatcher {
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if maxDelay < baseDelay {
		maxDelay = time.Minute
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Dispatcher{
		channels:    channels,
		log:         log,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
		maxAttempts: maxAttempts,
	}
}

// Dispatch delivers every event to every target and reports per-delivery
// outcomes. It stops early only when ctx is cancelled.
func (d *Dispatcher) Dispatch(ctx context.Context, targets []domain.NotificationTarget, events []domain.Event) []Result {
	if len(targets) == 0 || len(events) == 0 {
		return nil
	}
	results := make([]Result, 0, len(targets)*len(events))
	for _, target := range targets {
		for _, ev := range events {
			if ctx.Err() != nil {
				return results
			}
			attempts, err := d.deliver(ctx, target, ev)
			results = append(results, Result{Target: target, Event: ev, Attempts: attempts, Err: err})
			if err != nil {
				d.log.Error("notification delivery failed",
					logger.String("kind", string(target.Kind)),
					logger.String("event", string(ev.Kind)),
					logger.Int("attempts", attempts),
					logger.Error(err))
			}
		}
	}
	return results
}

func (d *Dispatcher) deliver(ctx context.Context, target domain.NotificationTarget, ev domain.Event) (int, error) {
	ch, ok := d.channels[target.Kind]
	if !ok {
		return 0, &domain.DeliveryError{Permanent: true, Err: fmt.Errorf("no channel for kind %q", target.Kind)}
	}

	attempts := 0
	for {
		attempts++
		err := ch.Deliver(ctx, target, ev)
		if err == nil {
			d.log.Debug("notification delivered",
				logger.String("kind", string(target.Kind)),
				logger.String("event", string(ev.Kind)),
				logger.Int("attempts", attempts))
			return attempts, nil
		}

		var de *domain.DeliveryError
		typed := errors.As(err, &de)
		if (typed && de.Permanent) || attempts >= d.maxAttempts {
			return attempts, err
		}

		delay := d.backoff(attempts - 1)
		if typed && de.RetryAfter > 0 {
			delay = de.RetryAfter
		}
		d.log.Warn("delivery attempt failed, retrying",
			logger.String("kind", string(target.Kind)),
			logger.Int("attempt", attempts),
			logger.Duration("delay", delay),
			logger.Error(err))

		select {
		case <-ctx.Done():
			return attempts, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// backoff doubles the base delay per attempt, caps it, then spreads it
// by up to a quarter in either direction.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	if attempt > 20 {
		attempt = 20
	}
	delay := d.baseDelay << uint(attempt)
	if delay > d.maxDelay || delay <= 0 {
		delay = d.maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/2+1)) - delay/4
	delay += jitter
	if delay < 0 {
		delay = 0
	}
	return delay
}
