package controller

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

const readinessTimeout = time.Second

// Pinger reports store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController interface {
	Health(c *fiber.Ctx) error
	Ready(c *fiber.Ctx) error
}

type healthController struct {
	store  Pinger
	logger zerolog.Logger
}

// NewHealthController builds a HealthController.
func NewHealthController(store Pinger, logger zerolog.Logger) HealthController {
	return &healthController{store: store, logger: logger}
}

// Health reports that the process is up.
func (h *healthController) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Ready reports whether the store answers a ping.
func (h *healthController) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), readinessTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("readiness check failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}
