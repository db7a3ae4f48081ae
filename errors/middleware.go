package errors

import (
	"errors"

	"github.com/labstack/echo/v4"
)

func CustomHTTPErrorHandler(err error, c echo.Context) {
	v := &ValidationError{}
	if errors.As(err, &v) {
		if !c.Response().Committed {
			_ = c.JSON(v.Kind.Code, map[string]any{
				"message": v.Kind.Error(),
				"fields":  v.Fields,
			})
		}
		return
	}

	e := HttpError{}
	if errors.As(err, &e) {
		c.Echo().DefaultHTTPErrorHandler(echo.NewHTTPError(e.Code, err.Error()), c)
		return
	}
	c.Echo().DefaultHTTPErrorHandler(err, c)
}
