package validate

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	reKind   = regexp.MustCompile(`^(console|discord|slack|webhook)$`)
	reStatus = regexp.MustCompile(`^(queued|running|succeeded|failed|cancelled)$`)
	reAdID   = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,128}$`)
)

// WatchURL validates an absolute http(s) URL of sane length.
func WatchURL(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 2048 {
		return "", false
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return s, true
}

// WatchID validates a positive integer path parameter.
func WatchID(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// AdID validates a source-assigned advertisement identifier.
func AdID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reAdID.MatchString(s)
}

// ChannelKind validates allowed notification channel enums.
func ChannelKind(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	return s, s != "" && reKind.MatchString(s)
}

// JobStatus validates the optional status filter on job listings.
func JobStatus(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	return s, s != "" && reStatus.MatchString(s)
}

// Username validates a displayable sender name for outbound messages.
func Username(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) > 80 {
		return "", false
	}
	return s, true
}

// Flag parses a loose boolean query/body value; ok is false on junk.
func Flag(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "yes", "on":
		return true, true
	case "0", "f", "false", "no", "off":
		return false, true
	}
	return false, false
}

// Limit clamps a pagination limit to a usable window.
func Limit(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 50
	}
	if n > 500 {
		return 500
	}
	return n
}
