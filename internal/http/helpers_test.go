package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"
	"github.com/jmoiron/sqlx"

	"adwatch/internal/domain"
	"adwatch/internal/http/handlers"
	"adwatch/internal/jobs"
	"adwatch/internal/locks"
	"adwatch/internal/logger"
	"adwatch/internal/repos"
	"adwatch/internal/services"
)

// Minimal app setup mirroring the route table in internal/app. The job
// queue is never started, so submitted jobs stay queued and tests can
// inspect them deterministically.
func newTestApp(t *testing.T, token string) (*fiber.App, *sqlx.DB, *jobs.Queue) {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	exec := func(ctx context.Context, job domain.Job) (*domain.ReconcileSummary, error) {
		return &domain.ReconcileSummary{}, nil
	}
	queue := jobs.NewQueue(exec, locks.NewKeyed(), logger.NewNop(), 1, 4)

	guard, err := services.NewTokenGuard(token)
	if err != nil {
		t.Fatalf("token guard: %v", err)
	}

	engine := html.New("../../web/templates", ".html")
	app := fiber.New(fiber.Config{Views: engine})
	app.Server().MaxRequestBodySize = 1 << 20
	app.Use(requestid.New())

	deps := handlers.NewDeps(db, queue)
	auth := handlers.RequireToken(guard)

	app.Get("/", deps.DashboardHandler.Home)
	app.Get("/watches/:id", deps.DashboardHandler.WatchDetail)

	api := app.Group("/api/v1")
	api.Get("/health", deps.HealthHandler.Health)
	api.Get("/watches", deps.WatchHandler.List)
	api.Post("/watches", auth, deps.WatchHandler.Create)
	api.Get("/watches/:id", deps.WatchHandler.Get)
	api.Delete("/watches/:id", auth, deps.WatchHandler.Delete)
	api.Put("/watches/:id/targets", auth, deps.WatchHandler.SetTargets)
	api.Delete("/watches/:id/targets", auth, deps.WatchHandler.ClearTargets)
	api.Get("/watches/:id/ads", deps.WatchHandler.ListAds)
	api.Post("/watches/:id/ads/:adId/price-alert", auth, deps.WatchHandler.SetAdPriceAlert)
	api.Post("/watches/:id/price-alerts", auth, deps.WatchHandler.SetAllPriceAlerts)
	api.Post("/watches/:id/rescrape", auth, deps.WatchHandler.Rescrape)
	api.Get("/jobs", deps.JobHandler.List)
	api.Get("/jobs/:id", deps.JobHandler.Get)
	api.Post("/jobs/:id/cancel", auth, deps.JobHandler.Cancel)

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).Render("notfound", fiber.Map{"Message": "Page not found"})
	})

	return app, db, queue
}

// jsonRequest builds a request with an optional JSON body and bearer token.
func jsonRequest(method, target, body, token string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// do runs the request and decodes the JSON response body into out (when
// out is non-nil), failing the test on transport errors.
func do(t *testing.T, app *fiber.App, req *http.Request, out any) *http.Response {
	t.Helper()
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	if out != nil {
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", req.Method, req.URL.Path, err)
		}
	}
	return resp
}

// createWatch inserts a watch through the API and returns its id.
func createWatch(t *testing.T, app *fiber.App, url string) int64 {
	t.Helper()
	var created struct {
		ID int64 `json:"id"`
	}
	resp := do(t, app, jsonRequest("POST", "/api/v1/watches", `{"url":"`+url+`"}`, ""), &created)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create watch: expected 201, got %d", resp.StatusCode)
	}
	if created.ID == 0 {
		t.Fatal("create watch: no id in response")
	}
	return created.ID
}

// seedAd writes an advertisement row directly, bypassing the scraper.
func seedAd(t *testing.T, db *sqlx.DB, watchID int64, adID string, price int64, active bool) {
	t.Helper()
	ads := repos.NewAdRepo(db)
	err := ads.Upsert(domain.Advertisement{
		ID:      adID,
		WatchID: watchID,
		Title:   "Listing " + adID,
		URL:     "https://market.example/item/" + adID,
		Price:   price,
		Active:  active,
	})
	if err != nil {
		t.Fatalf("seed ad %s: %v", adID, err)
	}
}
