package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"adwatch/internal/domain"
	"adwatch/internal/jobs"
	"adwatch/internal/services"
	"adwatch/internal/validate"
)

// DashboardHandler serves the read-only HTML status pages.
type DashboardHandler struct {
	Watches *services.WatchService
	Queue   *jobs.Queue
}

func (h *DashboardHandler) Home(c *fiber.Ctx) error {
	list, err := h.Watches.List()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).Render("notfound", fiber.Map{
			"Message": "Something went wrong. Please try again.",
		})
	}
	return render(c, "dashboard", fiber.Map{
		"Watches": list,
		"Jobs":    h.Queue.List(""),
	})
}

func (h *DashboardHandler) WatchDetail(c *fiber.Ctx) error {
	id, ok := validate.WatchID(c.Params("id"))
	if !ok {
		return c.Status(404).Render("notfound", fiber.Map{"Message": "This watch does not exist"})
	}
	ov, err := h.Watches.Overview(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(404).Render("notfound", fiber.Map{"Message": "This watch does not exist"})
		}
		return c.Status(fiber.StatusInternalServerError).Render("notfound", fiber.Map{
			"Message": "Something went wrong. Please try again.",
		})
	}
	ads, err := h.Watches.ListAds(id, false)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).Render("notfound", fiber.Map{
			"Message": "Something went wrong. Please try again.",
		})
	}
	return render(c, "watch", fiber.Map{"W": ov, "Ads": ads})
}
