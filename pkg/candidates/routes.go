package candidates

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

func RegisterRoutes(e *echo.Echo, db *bun.DB) {
	h := &handler{
		candidateService: NewService(db),
	}

	g := e.Group("/api/candidates")
	g.POST("", h.create)
	g.PATCH("/:id", h.update)
}
