package scansessions

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

func RegisterRoutes(e *echo.Echo, db *bun.DB) {
	h := &handler{
		sessionService: NewService(db),
	}

	g := e.Group("/api/scan-sessions")
	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
}
