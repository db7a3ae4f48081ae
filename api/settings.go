package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tidepool-org/glucose-alerts/settings"
)

func (h *Handler) GetAlertSettings(ec echo.Context) error {
	ctx := ec.Request().Context()
	result, err := h.settings.Get(ctx, ec.Param("userId"))
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, result)
}

func (h *Handler) UpdateAlertSettings(ec echo.Context) error {
	ctx := ec.Request().Context()
	update := settings.Update{}
	if err := ec.Bind(&update); err != nil {
		return err
	}

	result, err := h.settings.Update(ctx, ec.Param("userId"), update)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, result)
}

func (h *Handler) UpdateAlertSettingsForUsers(ec echo.Context) error {
	ctx := ec.Request().Context()
	dto := AlertSettingsForUsersUpdate{}
	if err := ec.Bind(&dto); err != nil {
		return err
	}
	if len(dto.UserIds) == 0 {
		return badRequest("userIds is required")
	}

	result, err := h.settings.UpdateMany(ctx, dto.UserIds, dto.Settings)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, result)
}
