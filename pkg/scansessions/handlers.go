package scansessions

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	sessionService *Service
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	query := ListSessionsQuery{}
	if err := c.Bind(&query); err != nil {
		return errors.WithStack(err)
	}

	sessionList, err := h.sessionService.ListSessions(ctx, ListSessionsOptions{
		ResumableOnly: query.Resumable,
		ActiveOnly:    query.Active,
		Limit:         &query.Limit,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{
		"scan_sessions": sessionList,
	}))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	session, err := h.sessionService.RetrieveSession(ctx, c.Param("id"))
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, session))
}
