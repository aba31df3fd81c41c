package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mokurokubooks/mokuroku/pkg/binder"
	"github.com/mokurokubooks/mokuroku/pkg/books"
	"github.com/mokurokubooks/mokuroku/pkg/candidates"
	"github.com/mokurokubooks/mokuroku/pkg/config"
	"github.com/mokurokubooks/mokuroku/pkg/errcodes"
	"github.com/mokurokubooks/mokuroku/pkg/jobs"
	"github.com/mokurokubooks/mokuroku/pkg/scanner"
	"github.com/mokurokubooks/mokuroku/pkg/scansessions"
	"github.com/mokurokubooks/mokuroku/pkg/sources"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/uptrace/bun"
)

func New(cfg *config.Config, db *bun.DB, scn *scanner.Scanner) (*http.Server, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)

	books.RegisterRoutes(e, db)
	candidates.RegisterRoutes(e, db)
	config.RegisterRoutes(e, cfg)
	jobs.RegisterRoutes(e, db)
	scanner.RegisterRoutes(e, scn)
	scansessions.RegisterRoutes(e, db)
	sources.RegisterRoutes(e, db)

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
