package fetch

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"adwatch/internal/domain"
)

const postedAtLayout = "2006-01-02 15:04"

var (
	reMillions = regexp.MustCompile(`^([0-9]+(?:[.,][0-9]+)?)\s*M\b`)
	reDigits   = regexp.MustCompile("[0-9][0-9  ]*")
	reToday    = regexp.MustCompile(`^ma\s+([0-9]{1,2}):([0-9]{2})$`)
	reYesterd  = regexp.MustCompile(`^tegnap\s+([0-9]{1,2}):([0-9]{2})$`)
	reAbsDate  = regexp.MustCompile(`^([0-9]{4}-[0-9]{2}-[0-9]{2})(?:\s+([0-9]{2}:[0-9]{2}))?$`)
)

// ParsePrice converts a source price string into an integer amount.
// Listings without a numeric price (wanted ads, trade offers, blank
// fields) come back as 0 by contract.
func ParsePrice(raw string) int64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}

	// Short form, e.g. "1,5M Ft" means one and a half million.
	if m := reMillions.FindStringSubmatch(s); m != nil {
		f, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err != nil {
			return 0
		}
		return int64(f * 1_000_000)
	}

	// Plain form with optional thousands spacing, e.g. "120 000 Ft".
	m := reDigits.FindString(s)
	if m == "" {
		return 0
	}
	m = strings.ReplaceAll(m, " ", "")
	m = strings.ReplaceAll(m, " ", "")
	n, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// NormalizeDate resolves the source's relative date expressions against
// now and reports whether the expression marks a pinned listing. Unknown
// expressions normalize to the empty string.
//
//	"ma 14:30"          today at 14:30
//	"tegnap 09:05"      yesterday at 09:05
//	"2026-08-12"        midnight of that day
//	"2026-08-12 18:00"  kept as-is
//	"előresorolva"     pinned, no timestamp
func NormalizeDate(expr string, now time.Time) (string, bool) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return "", false
	}
	if strings.EqualFold(s, "előresorolva") {
		return "", true
	}
	if m := reToday.FindStringSubmatch(s); m != nil {
		return atClock(now, m[1], m[2]), false
	}
	if m := reYesterd.FindStringSubmatch(s); m != nil {
		return atClock(now.AddDate(0, 0, -1), m[1], m[2]), false
	}
	if m := reAbsDate.FindStringSubmatch(s); m != nil {
		if _, err := time.Parse("2006-01-02", m[1]); err != nil {
			return "", false
		}
		if m[2] == "" {
			return m[1] + " 00:00", false
		}
		return m[1] + " " + m[2], false
	}
	return "", false
}

func atClock(day time.Time, hour, minute string) string {
	h, _ := strconv.Atoi(hour)
	min, _ := strconv.Atoi(minute)
	t := time.Date(day.Year(), day.Month(), day.Day(), h, min, 0, 0, day.Location())
	return t.Format(postedAtLayout)
}

// Normalize converts a wire-level listing into the engine's form.
func Normalize(raw RawListing, now time.Time) domain.Listing {
	posted, pinned := NormalizeDate(raw.Date, now)
	return domain.Listing{
		ID:           strings.TrimSpace(raw.ID),
		Title:        strings.TrimSpace(raw.Title),
		URL:          strings.TrimSpace(raw.URL),
		Price:        ParsePrice(raw.Price),
		Location:     strings.TrimSpace(raw.Location),
		PostedAt:     posted,
		Pinned:       raw.Pinned || pinned,
		SellerName:   strings.TrimSpace(raw.SellerName),
		SellerURL:    strings.TrimSpace(raw.SellerURL),
		SellerRating: strings.TrimSpace(raw.SellerRating),
		ImageURL:     strings.TrimSpace(raw.ImageURL),
	}
}

// NormalizeAll converts a snapshot, dropping records without a source id.
func NormalizeAll(raws []RawListing, now time.Time) []domain.Listing {
	out := make([]domain.Listing, 0, len(raws))
	for _, raw := range raws {
		l := Normalize(raw, now)
		if l.ID == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}
