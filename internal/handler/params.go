package handler

import (
	"strconv"

	"github.com/campusolx/backend/internal/service"
	"github.com/labstack/echo/v4"
)

func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, service.Validation("invalid "+name, service.FieldError{Field: name, Message: "Must be a positive integer"})
	}
	return id, nil
}

func bindJSON(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return service.Validation("invalid request body")
	}
	return nil
}
