package books

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mokurokubooks/mokuroku/pkg/candidates"
	"github.com/mokurokubooks/mokuroku/pkg/errcodes"
	"github.com/mokurokubooks/mokuroku/pkg/ledger"
	"github.com/mokurokubooks/mokuroku/pkg/models"
	"github.com/mokurokubooks/mokuroku/pkg/resolver"
	"github.com/pkg/errors"
)

type handler struct {
	bookService      *Service
	candidateService *candidates.Service
	ledgerService    *ledger.Service
	resolverService  *resolver.Service
}

func (h *handler) bookID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, errcodes.NotFound("Book")
	}
	return id, nil
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateBookPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	book := &models.Book{
		Filepath: params.Filepath,
		Title:    params.Title,
		ISBN:     params.ISBN,
	}
	if err := h.bookService.CreateBook(ctx, book); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := h.bookID(c)
	if err != nil {
		return err
	}

	book, err := h.bookService.RetrieveBook(ctx, RetrieveBookOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	query := ListBooksQuery{}
	if err := c.Bind(&query); err != nil {
		return errors.WithStack(err)
	}

	bookList, err := h.bookService.ListBooks(ctx, ListBooksOptions{
		Limit:  &query.Limit,
		Offset: &query.Offset,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{
		"books": bookList,
	}))
}

func (h *handler) listCandidates(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := h.bookID(c)
	if err != nil {
		return err
	}

	candidateList, err := h.candidateService.ListCandidates(ctx, candidates.ListCandidatesOptions{
		BookID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{
		"candidates": candidateList,
	}))
}

func (h *handler) listAccessRecords(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := h.bookID(c)
	if err != nil {
		return err
	}

	records, err := h.ledgerService.ListRecords(ctx, ledger.ListRecordsOptions{
		BookID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{
		"access_records": records,
	}))
}

func (h *handler) retrieveMetadata(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := h.bookID(c)
	if err != nil {
		return err
	}

	final, err := h.resolverService.ResolveFinalMetadata(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, final))
}

func (h *handler) updateReviewed(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := h.bookID(c)
	if err != nil {
		return err
	}

	params := UpdateReviewedPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	final, err := h.resolverService.SetReviewed(ctx, id, *params.Reviewed)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, final))
}
