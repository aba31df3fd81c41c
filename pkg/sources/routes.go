package sources

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

func RegisterRoutes(e *echo.Echo, db *bun.DB) {
	h := &handler{
		sourceService: NewService(db),
	}

	g := e.Group("/api/sources")
	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
}
