package jobs

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mokurokubooks/mokuroku/pkg/errcodes"
	"github.com/mokurokubooks/mokuroku/pkg/models"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

type handler struct {
	jobService *Service
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateJobPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	// Don't stack a second scan of the same type on top of a running one.
	hasActive, err := h.jobService.HasActiveJobByType(ctx, params.Type)
	if err != nil {
		return errors.WithStack(err)
	}
	if hasActive {
		return errcodes.Conflict("A job of this type is already running or pending.")
	}

	job := &models.Job{
		Type:   params.Type,
		Status: models.JobStatusPending,
		Data:   "{}",
	}
	if params.Data != nil {
		data, err := json.Marshal(params.Data)
		if err != nil {
			return errcodes.MalformedPayload()
		}
		job.Data = string(data)
	}

	if err := h.jobService.CreateJob(ctx, job); err != nil {
		return errors.WithStack(err)
	}

	job, err = h.jobService.RetrieveJob(ctx, RetrieveJobOptions{ID: &job.ID})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, job))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Job")
	}

	job, err := h.jobService.RetrieveJob(ctx, RetrieveJobOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, job))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	query := ListJobsQuery{}
	if err := c.Bind(&query); err != nil {
		return errors.WithStack(err)
	}

	opts := ListJobsOptions{
		Limit:  &query.Limit,
		Offset: &query.Offset,
	}
	if len(query.Status) > 0 {
		opts.Statuses = query.Status
	}

	jobList, err := h.jobService.ListJobs(ctx, opts)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{
		"jobs": jobList,
	}))
}
