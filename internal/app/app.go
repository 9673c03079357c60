// Package app wires the components together and manages the service lifecycle.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlog "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"
	"github.com/jmoiron/sqlx"

	"adwatch/internal/config"
	"adwatch/internal/domain"
	"adwatch/internal/fetch"
	"adwatch/internal/http/handlers"
	"adwatch/internal/jobs"
	"adwatch/internal/locks"
	"adwatch/internal/logger"
	"adwatch/internal/notify"
	"adwatch/internal/reconcile"
	"adwatch/internal/repos"
	"adwatch/internal/scheduler"
	"adwatch/internal/services"
)

const shutdownTimeout = 15 * time.Second

// App holds the fully wired service: storage, scheduler, job queue and
// the HTTP server.
type App struct {
	cfg    *config.Config
	log    logger.Logger
	db     *sqlx.DB
	runner *scheduler.Runner
	queue  *jobs.Queue
	web    *fiber.App
}

// New builds every component from the configuration. The returned App
// owns the database handle; call Close after Run returns.
func New(cfg *config.Config, log logger.Logger) (*App, error) {
	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	keyed := locks.NewKeyed()
	watchRepo := repos.NewWatchRepo(db)
	adRepo := repos.NewAdRepo(db)

	agents := fetch.NewAgentPool(cfg.Fetch.UserAgents)
	fetcher := fetch.NewHTTPFetcher(cfg.Fetch.Timeout)
	engine := reconcile.New(adRepo, log, cfg.Notify.PriceAlertDefault)

	formatter := notify.NewFormatter("adwatch", cfg.Notify.Currency)
	webhook := notify.NewWebhookChannel(cfg.Notify.Timeout, formatter)
	channels := map[domain.ChannelKind]notify.Channel{
		domain.ChannelConsole: notify.NewConsoleChannel(os.Stdout, formatter),
		domain.ChannelDiscord: webhook,
		domain.ChannelSlack:   webhook,
		domain.ChannelWebhook: webhook,
	}
	dispatcher := notify.NewDispatcher(channels, log, cfg.Notify.BaseDelay, cfg.Notify.MaxDelay, cfg.Notify.MaxAttempts)

	proc := scheduler.NewProcessor(watchRepo, fetcher, agents, engine, dispatcher, log)
	runner := scheduler.NewRunner(watchRepo, proc, keyed, log, cfg.Scheduler)

	executor := func(ctx context.Context, job domain.Job) (*domain.ReconcileSummary, error) {
		w, err := watchRepo.Get(job.WatchID)
		if err != nil {
			return nil, err
		}
		sum, err := proc.Process(ctx, w)
		if err != nil {
			return nil, err
		}
		return &sum, nil
	}
	queue := jobs.NewQueue(executor, keyed, log, cfg.Jobs.Workers, cfg.Jobs.QueueSize)

	guard, err := services.NewTokenGuard(cfg.APIToken)
	if err != nil {
		return nil, fmt.Errorf("api token guard: %w", err)
	}
	if !guard.Enabled() {
		log.Warn("no api token configured, mutating endpoints are open")
	}

	a := &App{
		cfg:    cfg,
		log:    log,
		db:     db,
		runner: runner,
		queue:  queue,
	}
	a.web = a.newServer(handlers.NewDeps(db, queue), guard)
	return a, nil
}

// newServer assembles the fiber app: templates, middlewares and routes.
func (a *App) newServer(deps *handlers.Deps, guard *services.TokenGuard) *fiber.App {
	engine := html.New("./web/templates", ".html")
	engine.Reload(a.cfg.Debug)

	web := fiber.New(fiber.Config{
		Views: engine,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			a.log.Error("unhandled server error",
				logger.String("path", c.Path()),
				logger.Error(err),
			)
			if strings.HasPrefix(c.Path(), "/api/") {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
			}
			// Avoid leaking internals; best-effort render
			if rerr := c.Status(fiber.StatusInternalServerError).Render("notfound", fiber.Map{
				"Message": "Something went wrong. Please try again.",
			}); rerr != nil {
				return c.Status(fiber.StatusInternalServerError).SendString("Something went wrong. Please try again.")
			}
			return nil
		},
	})
	// Global body size guard
	web.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	// ---------- Middlewares ----------
	web.Use(requestid.New())
	web.Use(fiberlog.New())
	web.Use(helmet.New())
	web.Use(limiter.New(limiter.Config{
		Max:        60,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			p := c.Path()
			return p == "/healthz" || p == "/api/v1/health"
		},
	}))

	// ---------- Pages ----------
	web.Get("/", deps.DashboardHandler.Home)
	web.Get("/watches/:id", deps.DashboardHandler.WatchDetail)

	// ---------- API ----------
	auth := handlers.RequireToken(guard)
	api := web.Group("/api/v1")

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

	// Health & 404
	web.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	web.Use(func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), "/api/") {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
		}
		return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": "Page not found"})
	})

	return web
}

// Run starts the job workers, the watch scheduler and the HTTP server,
// then blocks until a shutdown signal arrives or the server fails.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.queue.Start(runCtx)

	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		a.runner.Run(runCtx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info("http server listening", logger.String("addr", a.cfg.ListenAddr))
		serverErr <- a.web.Listen(a.cfg.ListenAddr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case sig := <-sigChan:
		a.log.Info("shutting down", logger.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			a.log.Error("http server failed", logger.Error(err))
			runErr = err
		}
	case <-ctx.Done():
	}

	cancel()
	if err := a.web.ShutdownWithTimeout(shutdownTimeout); err != nil {
		a.log.Error("http server shutdown", logger.Error(err))
	}
	<-runnerDone
	a.queue.Stop()

	a.log.Info("service stopped")
	return runErr
}

// Close releases resources owned by the App.
func (a *App) Close() error {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("close database", logger.Error(err))
		}
	}
	return a.log.Sync()
}
