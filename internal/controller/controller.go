package controller

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"telemetry-metrics-service/internal/auth"
	"telemetry-metrics-service/internal/model"
	"telemetry-metrics-service/internal/service"
)

type MetricsController interface {
	GetProjectMetrics(c *fiber.Ctx) error
	GetProjectEvents(c *fiber.Ctx) error
	GetProjectDevices(c *fiber.Ctx) error
}

// metricsController exposes the aggregated metric rows of a project.
type metricsController struct {
	metricService service.MetricQueryService
}

// NewMetricsController builds a MetricsController.
func NewMetricsController(svc service.MetricQueryService) MetricsController {
	return &metricsController{metricService: svc}
}

// GetProjectMetrics returns stored metrics of the authenticated project.
func (h *metricsController) GetProjectMetrics(c *fiber.Ctx) error {
	project, ok := auth.ProjectFrom(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "missing project")
	}

	filter, err := buildMetricsFilter(c)
	if err != nil {
		return err
	}
	filter.ProjectID = project.ID

	resp, svcErr := h.metricService.GetMetrics(c.Context(), filter)
	if svcErr != nil {
		return serviceError(svcErr, "failed to fetch metrics")
	}

	return c.JSON(resp)
}

// GetProjectEvents returns one page of raw events of the authenticated project.
func (h *metricsController) GetProjectEvents(c *fiber.Ctx) error {
	project, ok := auth.ProjectFrom(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "missing project")
	}

	from, err := unixQuery(c, "from")
	if err != nil {
		return err
	}
	to, err := unixQuery(c, "to")
	if err != nil {
		return err
	}
	limit, offset, err := pageQuery(c)
	if err != nil {
		return err
	}

	events, svcErr := h.metricService.GetEvents(c.Context(), model.EventQuery{
		ProjectID: project.ID,
		EventType: model.EventType(utils.Trim(c.Query("event_type"), ' ')),
		EventName: utils.Trim(c.Query("event_name"), ' '),
		DeviceID:  utils.Trim(c.Query("device_id"), ' '),
		Platform:  utils.Trim(c.Query("platform"), ' '),
		From:      from,
		To:        to,
		Limit:     limit,
		Offset:    offset,
	})
	if svcErr != nil {
		return serviceError(svcErr, "failed to fetch events")
	}

	return c.JSON(events)
}

// GetProjectDevices returns one page of devices of the authenticated project.
func (h *metricsController) GetProjectDevices(c *fiber.Ctx) error {
	project, ok := auth.ProjectFrom(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "missing project")
	}

	from, err := unixQuery(c, "from")
	if err != nil {
		return err
	}
	to, err := unixQuery(c, "to")
	if err != nil {
		return err
	}
	limit, offset, err := pageQuery(c)
	if err != nil {
		return err
	}

	devices, svcErr := h.metricService.GetDevices(c.Context(), model.DeviceQuery{
		ProjectID:     project.ID,
		Platform:      utils.Trim(c.Query("platform"), ' '),
		FirstSeenFrom: from,
		LastSeenTo:    to,
		Limit:         limit,
		Offset:        offset,
	})
	if svcErr != nil {
		return serviceError(svcErr, "failed to fetch devices")
	}

	return c.JSON(devices)
}

func serviceError(err error, message string) error {
	var vErr *service.ValidationError
	if errors.As(err, &vErr) {
		return fiber.NewError(fiber.StatusBadRequest, vErr.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, message)
}

// unixQuery parses an optional unix-seconds query parameter.
func unixQuery(c *fiber.Ctx, key string) (time.Time, error) {
	raw := utils.Trim(c.Query(key), ' ')
	if raw == "" {
		return time.Time{}, nil
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, "invalid "+key+" timestamp")
	}
	return time.Unix(sec, 0).UTC(), nil
}

func pageQuery(c *fiber.Ctx) (limit, offset int, err error) {
	if raw := utils.Trim(c.Query("limit"), ' '); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			return 0, 0, fiber.NewError(fiber.StatusBadRequest, "invalid limit")
		}
	}
	if raw := utils.Trim(c.Query("offset"), ' '); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil {
			return 0, 0, fiber.NewError(fiber.StatusBadRequest, "invalid offset")
		}
	}
	return limit, offset, nil
}

func buildMetricsFilter(c *fiber.Ctx) (model.MetricsFilter, error) {
	from, err := unixQuery(c, "from")
	if err != nil {
		return model.MetricsFilter{}, err
	}
	to, err := unixQuery(c, "to")
	if err != nil {
		return model.MetricsFilter{}, err
	}

	return model.MetricsFilter{
		MetricType: model.MetricType(utils.Trim(c.Query("metric_type"), ' ')),
		Period:     model.Period(utils.Trim(c.Query("period"), ' ')),
		From:       from,
		To:         to,
	}, nil
}
