// Package notify renders reconciliation events and delivers them to a
// watch's notification targets. Webhook-style channels share one HTTP
// sender; the dispatcher owns retry, backoff and per-target isolation.
package notify

import (
	"context"

	"adwatch/internal/domain"
)

// Channel performs one delivery attempt to one target. Implementations
// classify failures with *domain.DeliveryError so the dispatcher can
// decide whether to retry.
type Channel interface {
	Deliver(ctx context.Context, target domain.NotificationTarget, ev domain.Event) error
}
