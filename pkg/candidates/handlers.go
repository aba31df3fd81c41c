package candidates

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mokurokubooks/mokuroku/pkg/errcodes"
	"github.com/mokurokubooks/mokuroku/pkg/models"
	"github.com/pkg/errors"
)

type handler struct {
	candidateService *Service
}

// create accepts a manually entered candidate, e.g. a correction typed in by
// a user. It lands with active=true and participates in the next resolution
// like any extractor or API result.
func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateCandidatePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	candidate := &models.MetadataCandidate{
		BookID:     params.BookID,
		SourceID:   params.SourceID,
		Field:      params.Field,
		Value:      params.Value,
		Confidence: params.Confidence,
		Active:     true,
	}
	if err := h.candidateService.CreateCandidate(ctx, candidate); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, candidate))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Candidate")
	}

	params := UpdateCandidatePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	if err := h.candidateService.SetActive(ctx, id, *params.Active); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{
		"id":     id,
		"active": *params.Active,
	}))
}
