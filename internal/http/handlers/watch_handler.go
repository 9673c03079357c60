package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"adwatch/internal/domain"
	"adwatch/internal/jobs"
	"adwatch/internal/services"
	"adwatch/internal/validate"
)

type WatchHandler struct {
	Watches *services.WatchService
	Queue   *jobs.Queue
}

type createWatchRequest struct {
	URL     string                      `json:"url"`
	Targets []domain.NotificationTarget `json:"targets"`
}

type targetsRequest struct {
	Targets []domain.NotificationTarget `json:"targets"`
}

type alertRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *WatchHandler) Create(c *fiber.Ctx) error {
	var req createWatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed json body"})
	}
	url, ok := validate.WatchURL(req.URL)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "enter a valid http(s) url"})
	}
	targets, verr := sanitizeTargets(req.Targets)
	if verr != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr})
	}

	w, err := h.Watches.Create(url, targets)
	if err != nil {
		if errors.Is(err, services.ErrDuplicateURL) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(w)
}

func (h *WatchHandler) List(c *fiber.Ctx) error {
	list, err := h.Watches.List()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(list)
}

func (h *WatchHandler) Get(c *fiber.Ctx) error {
	id, ok := validate.WatchID(c.Params("id"))
	if !ok {
		return watchNotFound(c)
	}
	ov, err := h.Watches.Overview(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return watchNotFound(c)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(ov)
}

func (h *WatchHandler) Delete(c *fiber.Ctx) error {
	id, ok := validate.WatchID(c.Params("id"))
	if !ok {
		return watchNotFound(c)
	}
	if err := h.Watches.Delete(id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return watchNotFound(c)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *WatchHandler) SetTargets(c *fiber.Ctx) error {
	id, ok := validate.WatchID(c.Params("id"))
	if !ok {
		return watchNotFound(c)
	}
	var req targetsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed json body"})
	}
	targets, verr := sanitizeTargets(req.Targets)
	if verr != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr})
	}

	w, err := h.Watches.SetTargets(id, targets)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return watchNotFound(c)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(w)
}

func (h *WatchHandler) ClearTargets(c *fiber.Ctx) error {
	id, ok := validate.WatchID(c.Params("id"))
	if !ok {
		return watchNotFound(c)
	}
	if _, err := h.Watches.SetTargets(id, nil); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return watchNotFound(c)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *WatchHandler) ListAds(c *fiber.Ctx) error {
	id, ok := validate.WatchID(c.Params("id"))
	if !ok {
		return watchNotFound(c)
	}
	activeOnly := true
	if q := c.Query("active_only"); q != "" {
		v, ok := validate.Flag(q)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "active_only must be a boolean"})
		}
		activeOnly = v
	}

	ads, err := h.Watches.ListAds(id, activeOnly)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return watchNotFound(c)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(ads)
}

func (h *WatchHandler) SetAdPriceAlert(c *fiber.Ctx) error {
	id, ok := validate.WatchID(c.Params("id"))
	if !ok {
		return watchNotFound(c)
	}
	adID, ok := validate.AdID(c.Params("adId"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "advertisement not found"})
	}
	enabled, verr := parseAlertBody(c)
	if verr != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr})
	}

	ad, err := h.Watches.SetAdPriceAlert(id, adID, enabled)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "advertisement not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(ad)
}

func (h *WatchHandler) SetAllPriceAlerts(c *fiber.Ctx) error {
	id, ok := validate.WatchID(c.Params("id"))
	if !ok {
		return watchNotFound(c)
	}
	enabled, verr := parseAlertBody(c)
	if verr != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr})
	}

	n, err := h.Watches.SetAllPriceAlerts(id, enabled)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return watchNotFound(c)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"updated": n, "enabled": enabled})
}

// Rescrape queues an immediate out-of-schedule check for the watch.
func (h *WatchHandler) Rescrape(c *fiber.Ctx) error {
	id, ok := validate.WatchID(c.Params("id"))
	if !ok {
		return watchNotFound(c)
	}
	if _, err := h.Watches.Get(id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return watchNotFound(c)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	job, err := h.Queue.Submit(domain.JobKindRescrape, id)
	if err != nil {
		if errors.Is(err, jobs.ErrQueueFull) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "job queue is full, retry later"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusAccepted).JSON(job)
}

func watchNotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "watch not found"})
}

func parseAlertBody(c *fiber.Ctx) (bool, string) {
	var req alertRequest
	if err := c.BodyParser(&req); err != nil {
		return false, "malformed json body"
	}
	if req.Enabled == nil {
		return false, "missing enabled field"
	}
	return *req.Enabled, ""
}

func sanitizeTargets(in []domain.NotificationTarget) ([]domain.NotificationTarget, string) {
	out := make([]domain.NotificationTarget, 0, len(in))
	for _, t := range in {
		kind, ok := validate.ChannelKind(string(t.Kind))
		if !ok {
			return nil, "unknown target kind, use console, discord, slack or webhook"
		}
		t.Kind = domain.ChannelKind(kind)
		if t.Kind != domain.ChannelConsole {
			addr, ok := validate.WatchURL(t.Address)
			if !ok {
				return nil, "target address must be a valid http(s) url"
			}
			t.Address = addr
		}
		name, ok := validate.Username(t.Username)
		if !ok {
			return nil, "target username is too long"
		}
		t.Username = name
		out = append(out, t)
	}
	return out, ""
}
