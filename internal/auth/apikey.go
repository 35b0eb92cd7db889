package auth

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"telemetry-metrics-service/internal/model"
	"telemetry-metrics-service/internal/service"
)

// HeaderAPIKey carries the project API key.
const HeaderAPIKey = "X-API-Key"

const projectLocal = "project"

type ProjectAuthenticator interface {
	Authenticate(ctx context.Context, projectID uuid.UUID, apiKey string) (model.Project, error)
}

// RequireProjectKey rejects requests whose X-API-Key does not belong to the
// :projectID route parameter. The matched project is stored for handlers.
func RequireProjectKey(authn ProjectAuthenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID, err := uuid.Parse(c.Params("projectID"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid project id")
		}

		project, err := authn.Authenticate(c.Context(), projectID, c.Get(HeaderAPIKey))
		if errors.Is(err, service.ErrUnauthorized) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid api key")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to authenticate")
		}

		c.Locals(projectLocal, project)
		return c.Next()
	}
}

// ProjectFrom returns the project stored by RequireProjectKey.
func ProjectFrom(c *fiber.Ctx) (model.Project, bool) {
	project, ok := c.Locals(projectLocal).(model.Project)
	return project, ok
}
