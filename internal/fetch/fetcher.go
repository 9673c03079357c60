// Package fetch retrieves raw listing snapshots from the classifieds
// source and normalizes them for reconciliation. The HTTP adapter expects
// an already-structured JSON payload; HTML scraping of a specific
// marketplace stays behind this boundary.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"adwatch/internal/domain"
)

// RawListing is the wire-level record produced by the listing source.
// Price and date arrive as raw strings; Normalize converts them.
type RawListing struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	Price        string `json:"price"`
	Location     string `json:"location"`
	Date         string `json:"date"`
	Pinned       bool   `json:"pinned"`
	SellerName   string `json:"seller_name"`
	SellerURL    string `json:"seller_url"`
	SellerRating string `json:"seller_rating"`
	ImageURL     string `json:"image_url"`
}

// Fetcher is the fetch-and-parse port consumed by the watch pipeline.
type Fetcher interface {
	FetchListings(ctx context.Context, url, userAgent string) ([]RawListing, error)
}

// AgentPool hands out a random client identity per request.
type AgentPool struct {
	agents []string
}

func NewAgentPool(agents []string) *AgentPool {
	return &AgentPool{agents: agents}
}

func (p *AgentPool) Pick() string {
	if len(p.agents) == 0 {
		return ""
	}
	return p.agents[rand.Intn(len(p.agents))]
}

// HTTPFetcher is the production Fetcher. It GETs the watch URL and accepts
// either {"listings": [...]} or a bare JSON array.
type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) FetchListings(ctx context.Context, url, userAgent string) ([]RawListing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &domain.FetchError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Connection", "keep-alive")
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &domain.FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.FetchError{URL: url, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.FetchError{URL: url, Err: err}
	}

	listings, err := parsePayload(body)
	if err != nil {
		return nil, &domain.ParseFailure{URL: url, Err: err}
	}
	return listings, nil
}

// parsePayload accepts both object-wrapped and bare-array payloads.
func parsePayload(body []byte) ([]RawListing, error) {
	var wrapped struct {
		Listings []RawListing `json:"listings"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Listings != nil {
		return wrapped.Listings, nil
	}
	var arr []RawListing
	if err := json.Unmarshal(body, &arr); err != nil {
		return nil, fmt.Errorf("listing payload: %w", err)
	}
	return arr, nil
}
