package domain

import "time"

// ChannelKind selects the notification channel implementation for a target.
type ChannelKind string

const (
	ChannelConsole ChannelKind = "console"
	ChannelDiscord ChannelKind = "discord"
	ChannelSlack   ChannelKind = "slack"
	ChannelWebhook ChannelKind = "webhook" // generic JSON webhook
)

// NotificationTarget is one delivery destination attached to a Watch.
// The list on a watch is replaced wholesale on update, never mutated in place.
type NotificationTarget struct {
	Kind      ChannelKind       `json:"kind"`
	Address   string            `json:"address"` // webhook URL, or a label for console output
	Username  string            `json:"username,omitempty"`
	AvatarURL string            `json:"avatar_url,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// Watch is a monitored search query.
type Watch struct {
	ID          int64                `db:"id" json:"id"`
	URL         string               `db:"url" json:"url"`
	LastChecked int64                `db:"last_checked" json:"last_checked"` // unix seconds; 0 = never checked
	Targets     []NotificationTarget `json:"targets"`
	CreatedAt   string               `db:"created_at" json:"created_at"`
	UpdatedAt   string               `db:"updated_at" json:"updated_at"`
}

// Due reports whether the watch's interval has elapsed since its last
// completed check.
func (w Watch) Due(now time.Time, interval time.Duration) bool {
	return now.Unix()-w.LastChecked >= int64(interval/time.Second)
}

// Advertisement is one listing observed under a Watch. The id is assigned
// by the listing source, so records are keyed by (watch_id, id) and id
// reuse by the source is tolerated. Rows are never deleted on
// disappearance; they flip inactive to preserve price history.
type Advertisement struct {
	ID           string  `db:"id" json:"id"`
	WatchID      int64   `db:"watch_id" json:"watch_id"`
	Title        string  `db:"title" json:"title"`
	URL          string  `db:"url" json:"url"`
	Price        int64   `db:"price" json:"price"` // minor units, currency-agnostic
	Location     string  `db:"location" json:"location"`
	PostedAt     string  `db:"posted_at" json:"posted_at"` // "YYYY-MM-DD HH:MM", empty when unknown
	Pinned       bool    `db:"pinned" json:"pinned"`
	SellerName   string  `db:"seller_name" json:"seller_name"`
	SellerURL    string  `db:"seller_url" json:"seller_url"`
	SellerRating string  `db:"seller_rating" json:"seller_rating"`
	ImageURL     string  `db:"image_url" json:"image_url"`
	Active       bool    `db:"active" json:"active"`
	PrevPrices   []int64 `json:"prev_prices"` // append-only, oldest first
	PriceAlert   bool    `db:"price_alert" json:"price_alert"`
	CreatedAt    string  `db:"created_at" json:"created_at"`
	UpdatedAt    string  `db:"updated_at" json:"updated_at"`
}

// Listing is one normalized snapshot entry handed to the reconciliation
// engine. Price is already parsed; an unparseable source price arrives as 0.
type Listing struct {
	ID           string
	Title        string
	URL          string
	Price        int64
	Location     string
	PostedAt     string
	Pinned       bool
	SellerName   string
	SellerURL    string
	SellerRating string
	ImageURL     string
}

// ReconcileSummary counts what one reconciliation pass did.
type ReconcileSummary struct {
	Found        int `json:"found"`
	New          int `json:"new"`
	PriceChanged int `json:"price_changed"`
	Reactivated  int `json:"reactivated"`
	Deactivated  int `json:"deactivated"`
}

type JobKind string

const JobKindRescrape JobKind = "force_rescrape"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed || s == JobCancelled
}

// Job is one queued unit of asynchronous work. Jobs live in memory only
// and are lost on restart.
type Job struct {
	ID          string            `json:"id"`
	Kind        JobKind           `json:"kind"`
	WatchID     int64             `json:"watch_id"`
	Status      JobStatus         `json:"status"`
	Result      *ReconcileSummary `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}
