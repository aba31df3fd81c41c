package scanner

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	scanner *Scanner
}

func (h *handler) recommendations(c echo.Context) error {
	ctx := c.Request().Context()

	rec, err := h.scanner.ScanningRecommendations(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, rec))
}

func (h *handler) status(c echo.Context) error {
	ctx := c.Request().Context()

	statuses, err := h.scanner.APIStatus(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{
		"sources": statuses,
	}))
}

func (h *handler) health(c echo.Context) error {
	ctx := c.Request().Context()

	health, err := h.scanner.CheckAPIHealth(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, health))
}
