package notify

import (
	"fmt"
	"strings"
	"time"

	"adwatch/internal/domain"
)

// Formatter renders events into the message text and the per-platform
// webhook payloads. Empty payload fields are dropped rather than sent
// as nulls.
type Formatter struct {
	botName  string
	currency string
}

func NewFormatter(botName, currency string) *Formatter {
	if botName == "" {
		botName = "adwatch"
	}
	return &Formatter{botName: botName, currency: currency}
}

// Message renders the plain-text form used by console targets and as the
// content of webhook payloads.
func (f *Formatter) Message(ev domain.Event) string {
	var b strings.Builder
	switch ev.Kind {
	case domain.EventPriceChanged:
		fmt.Fprintf(&b, "Price change: %s\n", ev.Ad.Title)
		fmt.Fprintf(&b, "Old price: %s\n", f.amount(ev.OldPrice))
		fmt.Fprintf(&b, "New price: %s\n", f.amount(ev.NewPrice))
	default:
		fmt.Fprintf(&b, "New listing: %s\n", ev.Ad.Title)
		fmt.Fprintf(&b, "Price: %s\n", f.amount(ev.Ad.Price))
	}
	if ev.Ad.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", ev.Ad.Location)
	}
	if ev.Ad.SellerName != "" {
		fmt.Fprintf(&b, "Seller: %s\n", ev.Ad.SellerName)
	}
	b.WriteString(ev.Ad.URL)
	return b.String()
}

func (f *Formatter) amount(n int64) string {
	s := FormatAmount(n)
	if f.currency == "" {
		return s
	}
	return s + " " + f.currency
}

// FormatAmount groups digits in thousands with spaces, e.g. 1234567
// becomes "1 234 567".
func FormatAmount(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, " ")
	if neg {
		return "-" + out
	}
	return out
}

// DiscordPayload builds the Discord webhook body.
func (f *Formatter) DiscordPayload(target domain.NotificationTarget, ev domain.Event) map[string]any {
	p := map[string]any{
		"content":  f.Message(ev),
		"username": f.senderName(target),
		"tts":      false,
	}
	if target.AvatarURL != "" {
		p["avatar_url"] = target.AvatarURL
	}
	return p
}

// SlackPayload builds the Slack incoming-webhook body.
func (f *Formatter) SlackPayload(target domain.NotificationTarget, ev domain.Event) map[string]any {
	p := map[string]any{
		"text":     f.Message(ev),
		"username": f.senderName(target),
	}
	if target.AvatarURL != "" {
		p["icon_url"] = target.AvatarURL
	}
	return p
}

// GenericPayload builds the catch-all JSON body for plain webhook targets.
func (f *Formatter) GenericPayload(_ domain.NotificationTarget, ev domain.Event) map[string]any {
	p := map[string]any{
		"message":   f.Message(ev),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"source":    f.botName,
		"event":     string(ev.Kind),
		"watch_id":  ev.Ad.WatchID,
		"ad_id":     ev.Ad.ID,
		"title":     ev.Ad.Title,
		"url":       ev.Ad.URL,
		"price":     ev.Ad.Price,
	}
	if ev.Kind == domain.EventPriceChanged {
		p["old_price"] = ev.OldPrice
		p["new_price"] = ev.NewPrice
	}
	return p
}

func (f *Formatter) senderName(target domain.NotificationTarget) string {
	if target.Username != "" {
		return target.Username
	}
	return f.botName
}
