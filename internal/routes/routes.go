package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"telemetry-metrics-service/internal/auth"
	"telemetry-metrics-service/internal/controller"
)

// Handlers groups everything Register attaches.
type Handlers struct {
	Metrics       controller.MetricsController
	Health        controller.HealthController
	Authenticator auth.ProjectAuthenticator
	Gatherer      prometheus.Gatherer
}

// Register attaches all HTTP routes to the Fiber app.
func Register(app *fiber.App, h Handlers) {
	app.Get("/health", h.Health.Health)
	app.Get("/ready", h.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{})))

	v1 := app.Group("/api/v1")
	requireKey := auth.RequireProjectKey(h.Authenticator)
	v1.Get("/projects/:projectID/metrics", requireKey, h.Metrics.GetProjectMetrics)
	v1.Get("/projects/:projectID/events", requireKey, h.Metrics.GetProjectEvents)
	v1.Get("/projects/:projectID/devices", requireKey, h.Metrics.GetProjectDevices)
}
