package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tidepool-org/glucose-alerts/alerts"
)

func (h *Handler) ListAlerts(ec echo.Context) error {
	ctx := ec.Request().Context()
	page, err := pagination(ec.QueryParam("offset"), ec.QueryParam("limit"))
	if err != nil {
		return err
	}

	filter := alerts.Filter{UserId: ec.Param("userId")}
	if value := ec.QueryParam("kind"); value != "" {
		kind := alerts.Kind(value)
		if !kind.IsValid() {
			return badRequest("unknown alert kind %q", value)
		}
		filter.Kind = &kind
	}
	if value := ec.QueryParam("acknowledged"); value != "" {
		acknowledged, err := strconv.ParseBool(value)
		if err != nil {
			return badRequest("acknowledged must be a boolean")
		}
		filter.Acknowledged = &acknowledged
	}

	list, err := h.alerts.List(ctx, filter, page)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, NewAlertsDto(list))
}

func (h *Handler) AcknowledgeAlert(ec echo.Context) error {
	ctx := ec.Request().Context()
	alert, err := h.alerts.Acknowledge(ctx, ec.Param("userId"), ec.Param("alertId"))
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, NewAlertDto(alert))
}
