package api

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/tidepool-org/glucose-alerts/alerts"
	"github.com/tidepool-org/glucose-alerts/settings"
	"github.com/tidepool-org/glucose-alerts/store"
)

type Handler struct {
	settings settings.Service
	alerts   alerts.Repository
	detector alerts.Detector
}

type Params struct {
	fx.In

	Settings         settings.Service
	AlertsRepository alerts.Repository
	Detector         alerts.Detector
}

func NewHandler(p Params) *Handler {
	return &Handler{
		settings: p.Settings,
		alerts:   p.AlertsRepository,
		detector: p.Detector,
	}
}

func RegisterHandlers(e *echo.Echo, h *Handler) {
	v1 := e.Group("/v1")
	v1.POST("/users/:userId/glucose", h.DetectGlucoseAlert)
	v1.GET("/users/:userId/alerts/settings", h.GetAlertSettings)
	v1.PATCH("/users/:userId/alerts/settings", h.UpdateAlertSettings)
	v1.PATCH("/alerts/settings", h.UpdateAlertSettingsForUsers)
	v1.GET("/users/:userId/alerts", h.ListAlerts)
	v1.POST("/users/:userId/alerts/:alertId/acknowledge", h.AcknowledgeAlert)
}

func pagination(offset, limit string) (store.Pagination, error) {
	page := store.DefaultPagination()
	if offset != "" {
		value, err := strconv.Atoi(offset)
		if err != nil || value < 0 {
			return page, badRequest("offset must be a non-negative integer")
		}
		page = page.WithOffset(value)
	}
	if limit != "" {
		value, err := strconv.Atoi(limit)
		if err != nil || value < 1 || value > store.MaxLimit {
			return page, badRequest("limit must be between 1 and %d", store.MaxLimit)
		}
		page = page.WithLimit(value)
	}
	return page, nil
}
