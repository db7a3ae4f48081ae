package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

func (h *Handler) DetectGlucoseAlert(ec echo.Context) error {
	ctx := ec.Request().Context()
	dto := GlucoseSample{}
	if err := ec.Bind(&dto); err != nil {
		return err
	}

	sample, err := NewSample(ec.Param("userId"), dto, time.Now())
	if err != nil {
		return err
	}

	alert, err := h.detector.Detect(ctx, sample)
	if err != nil {
		return err
	}
	if alert == nil {
		return ec.NoContent(http.StatusNoContent)
	}

	return ec.JSON(http.StatusCreated, NewAlertDto(alert))
}
