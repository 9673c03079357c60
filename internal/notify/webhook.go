package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"adwatch/internal/domain"
)

const webhookUserAgent = "adwatch-webhook/1.0"

// WebhookChannel POSTs JSON payloads to discord, slack and generic
// webhook targets. The payload shape follows the target kind; custom
// headers on the target are sent verbatim.
type WebhookChannel struct {
	client *http.Client
	fmt    *Formatter
}

func NewWebhookChannel(timeout time.Duration, f *Formatter) *WebhookChannel {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebhookChannel{client: &http.Client{Timeout: timeout}, fmt: f}
}

func (c *WebhookChannel) Deliver(ctx context.Context, target domain.NotificationTarget, ev domain.Event) error {
	var payload map[string]any
	switch target.Kind {
	case domain.ChannelDiscord:
		payload = c.fmt.DiscordPayload(target, ev)
	case domain.ChannelSlack:
		payload = c.fmt.SlackPayload(target, ev)
	default:
		payload = c.fmt.GenericPayload(target, ev)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &domain.DeliveryError{Permanent: true, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.Address, bytes.NewReader(body))
	if err != nil {
		return &domain.DeliveryError{Permanent: true, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", webhookUserAgent)
	for k, v := range target.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &domain.DeliveryError{Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return classify(resp)
}

// classify maps an HTTP response onto the delivery error taxonomy.
// Success needs no body, 204 included. Rate limiting and request
// timeouts stay retryable; other client errors are configuration
// problems and retrying them would only repeat the rejection.
func classify(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return &domain.DeliveryError{
			Status:     code,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("rate limited"),
		}
	case code == http.StatusRequestTimeout:
		return &domain.DeliveryError{Status: code, Err: fmt.Errorf("request timeout")}
	case code >= 400 && code < 500:
		return &domain.DeliveryError{Permanent: true, Status: code, Err: fmt.Errorf("rejected")}
	default:
		return &domain.DeliveryError{Status: code, Err: fmt.Errorf("upstream error")}
	}
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(h); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
