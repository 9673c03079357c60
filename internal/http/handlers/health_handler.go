package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"

	"adwatch/internal/jobs"
	"adwatch/internal/repos"
)

type HealthHandler struct {
	DB        *sqlx.DB
	Watches   *repos.WatchRepo
	Queue     *jobs.Queue
	StartedAt time.Time
}

// Health reports process liveness plus a small operational snapshot.
// A failing database ping degrades the status to 503 so orchestrators
// can restart us.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	status := "ok"
	code := fiber.StatusOK
	if err := h.DB.Ping(); err != nil {
		status = "degraded"
		code = fiber.StatusServiceUnavailable
	}

	watchCount := -1
	if ws, err := h.Watches.List(); err == nil {
		watchCount = len(ws)
	}

	return c.Status(code).JSON(fiber.Map{
		"status":         status,
		"uptime_seconds": int64(time.Since(h.StartedAt).Seconds()),
		"watches":        watchCount,
		"jobs":           h.Queue.Stats(),
	})
}
