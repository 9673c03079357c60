package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"adwatch/internal/domain"
	"adwatch/internal/jobs"
	"adwatch/internal/validate"
)

type JobHandler struct {
	Queue *jobs.Queue
}

func (h *JobHandler) List(c *fiber.Ctx) error {
	var status domain.JobStatus
	if q := c.Query("status"); q != "" {
		s, ok := validate.JobStatus(q)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "status must be one of queued, running, succeeded, failed, cancelled",
			})
		}
		status = domain.JobStatus(s)
	}
	return c.JSON(h.Queue.List(status))
}

func (h *JobHandler) Get(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return jobNotFound(c)
	}
	job, err := h.Queue.Get(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return jobNotFound(c)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(job)
}

// Cancel is final for queued jobs and advisory for running ones; the
// returned snapshot shows which of the two happened.
func (h *JobHandler) Cancel(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return jobNotFound(c)
	}
	job, err := h.Queue.Cancel(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return jobNotFound(c)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(job)
}

func jobNotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
}
