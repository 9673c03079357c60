package handlers_test

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestHealthSnapshot(t *testing.T) {
	app, _, _ := newTestApp(t, "")
	createWatch(t, app, "https://market.example/search?q=crt")

	var got struct {
		Status        string         `json:"status"`
		UptimeSeconds float64        `json:"uptime_seconds"`
		Watches       int            `json:"watches"`
		Jobs          map[string]int `json:"jobs"`
	}
	resp := do(t, app, jsonRequest("GET", "/api/v1/health", "", ""), &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", resp.StatusCode)
	}
	if got.Status != "ok" {
		t.Fatalf("expected status ok, got %q", got.Status)
	}
	if got.Watches != 1 {
		t.Fatalf("expected 1 watch, got %d", got.Watches)
	}
	if got.Jobs == nil {
		t.Fatal("expected job counters in health payload")
	}
}

func TestHealthzLiveness(t *testing.T) {
	app, _, _ := newTestApp(t, "")

	var got map[string]bool
	resp := do(t, app, jsonRequest("GET", "/healthz", "", ""), &got)
	if resp.StatusCode != http.StatusOK || !got["ok"] {
		t.Fatalf("healthz: expected ok payload, got %d %v", resp.StatusCode, got)
	}
}

func TestDashboardPages(t *testing.T) {
	app, db, _ := newTestApp(t, "")
	id := createWatch(t, app, "https://market.example/search?q=minidisc")
	seedAd(t, db, id, "md-1", 42000, true)

	resp := do(t, app, jsonRequest("GET", "/", "", ""), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("home page: expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "market.example") {
		t.Fatal("home page should list the watch url")
	}

	resp = do(t, app, jsonRequest("GET", "/watches/1", "", ""), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("watch page: expected 200, got %d", resp.StatusCode)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "Listing md-1") {
		t.Fatal("watch page should list the seeded ad")
	}

	resp = do(t, app, jsonRequest("GET", "/watches/999", "", ""), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown watch page: expected 404, got %d", resp.StatusCode)
	}
	resp = do(t, app, jsonRequest("GET", "/nope", "", ""), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("catch-all: expected 404, got %d", resp.StatusCode)
	}
}
