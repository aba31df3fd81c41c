package sources

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mokurokubooks/mokuroku/pkg/errcodes"
	"github.com/pkg/errors"
)

type handler struct {
	sourceService *Service
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	sourceList, err := h.sourceService.ListSources(ctx, ListSourcesOptions{})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{
		"sources": sourceList,
	}))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Source")
	}

	source, err := h.sourceService.RetrieveSource(ctx, RetrieveSourceOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, source))
}
