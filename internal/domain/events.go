package domain

// EventKind tags a domain event produced by reconciliation.
type EventKind string

const (
	EventNewAdvertisement EventKind = "new_advertisement"
	EventPriceChanged     EventKind = "price_changed"
)

// Event describes one notification-worthy state transition. OldPrice and
// NewPrice are set for price changes only. Disappearance emits no event.
type Event struct {
	Kind     EventKind
	Ad       Advertisement
	OldPrice int64
	NewPrice int64
}
