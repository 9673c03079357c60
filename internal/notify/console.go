package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"adwatch/internal/domain"
)

// ConsoleChannel prints events to a writer, normally stdout. Useful for
// local runs and as the zero-configuration default target.
type ConsoleChannel struct {
	mu  sync.Mutex
	w   io.Writer
	fmt *Formatter
}

func NewConsoleChannel(w io.Writer, f *Formatter) *ConsoleChannel {
	return &ConsoleChannel{w: w, fmt: f}
}

func (c *ConsoleChannel) Deliver(_ context.Context, target domain.NotificationTarget, ev domain.Event) error {
	label := target.Address
	if label == "" {
		label = "console"
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintf(c.w, "[%s] %s\n", label, c.fmt.Message(ev)); err != nil {
		return &domain.DeliveryError{Permanent: true, Err: err}
	}
	return nil
}
