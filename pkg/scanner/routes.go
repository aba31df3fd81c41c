package scanner

import (
	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, scn *Scanner) {
	h := &handler{scanner: scn}

	g := e.Group("/api/scanner")
	g.GET("/recommendations", h.recommendations)
	g.GET("/status", h.status)
	g.GET("/health", h.health)
}
