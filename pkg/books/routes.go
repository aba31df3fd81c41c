package books

import (
	"github.com/labstack/echo/v4"
	"github.com/mokurokubooks/mokuroku/pkg/candidates"
	"github.com/mokurokubooks/mokuroku/pkg/ledger"
	"github.com/mokurokubooks/mokuroku/pkg/resolver"
	"github.com/uptrace/bun"
)

func RegisterRoutes(e *echo.Echo, db *bun.DB) {
	h := &handler{
		bookService:      NewService(db),
		candidateService: candidates.NewService(db),
		ledgerService:    ledger.NewService(db),
		resolverService:  resolver.NewService(db, nil),
	}

	g := e.Group("/api/books")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.retrieve)
	g.GET("/:id/candidates", h.listCandidates)
	g.GET("/:id/access-records", h.listAccessRecords)
	g.GET("/:id/metadata", h.retrieveMetadata)
	g.PATCH("/:id/metadata/reviewed", h.updateReviewed)
}
