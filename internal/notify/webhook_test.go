package notify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adwatch/internal/domain"
	"adwatch/internal/notify"
)

func newEvent() domain.Event {
	return domain.Event{Kind: domain.EventNewAdvertisement, Ad: sampleAd()}
}

func TestWebhookChannel_SuccessNoContent(t *testing.T) {
	t.Parallel()

	var got map[string]any
	var contentType, agent, custom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		agent = r.Header.Get("User-Agent")
		custom = r.Header.Get("X-Auth")
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ch := notify.NewWebhookChannel(5*time.Second, notify.NewFormatter("adwatch", "Ft"))
	err := ch.Deliver(context.Background(), domain.NotificationTarget{
		Kind:    domain.ChannelDiscord,
		Address: srv.URL,
		Headers: map[string]string{"X-Auth": "secret"},
	}, newEvent())

	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)
	assert.Contains(t, agent, "adwatch-webhook")
	assert.Equal(t, "secret", custom)
	assert.Contains(t, got["content"], "New listing")
}

func TestWebhookChannel_ClientErrorIsPermanent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad webhook", http.StatusNotFound)
	}))
	defer srv.Close()

	ch := notify.NewWebhookChannel(5*time.Second, notify.NewFormatter("adwatch", "Ft"))
	err := ch.Deliver(context.Background(), domain.NotificationTarget{
		Kind:    domain.ChannelWebhook,
		Address: srv.URL,
	}, newEvent())

	var de *domain.DeliveryError
	require.True(t, errors.As(err, &de))
	assert.True(t, de.Permanent)
	assert.Equal(t, http.StatusNotFound, de.Status)
}

func TestWebhookChannel_RateLimitCarriesRetryAfter(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ch := notify.NewWebhookChannel(5*time.Second, notify.NewFormatter("adwatch", "Ft"))
	err := ch.Deliver(context.Background(), domain.NotificationTarget{
		Kind:    domain.ChannelWebhook,
		Address: srv.URL,
	}, newEvent())

	var de *domain.DeliveryError
	require.True(t, errors.As(err, &de))
	assert.False(t, de.Permanent)
	assert.Equal(t, 7*time.Second, de.RetryAfter)
}

func TestWebhookChannel_ServerErrorIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ch := notify.NewWebhookChannel(5*time.Second, notify.NewFormatter("adwatch", "Ft"))
	err := ch.Deliver(context.Background(), domain.NotificationTarget{
		Kind:    domain.ChannelWebhook,
		Address: srv.URL,
	}, newEvent())

	var de *domain.DeliveryError
	require.True(t, errors.As(err, &de))
	assert.False(t, de.Permanent)
}

func TestWebhookChannel_SlackShape(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ch := notify.NewWebhookChannel(5*time.Second, notify.NewFormatter("adwatch", "Ft"))
	err := ch.Deliver(context.Background(), domain.NotificationTarget{
		Kind:    domain.ChannelSlack,
		Address: srv.URL,
	}, newEvent())

	require.NoError(t, err)
	assert.Contains(t, got, "text")
	assert.NotContains(t, got, "content")
}

func TestConsoleChannel_WritesLabelAndMessage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ch := notify.NewConsoleChannel(&buf, notify.NewFormatter("adwatch", "Ft"))
	err := ch.Deliver(context.Background(), domain.NotificationTarget{Kind: domain.ChannelConsole}, newEvent())

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "[console]")
	assert.Contains(t, out, "New listing: RTX 3080 10GB")
}
