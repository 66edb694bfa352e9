package http

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"peregrine/internal/jobs"
	"peregrine/internal/services"
	"peregrine/internal/store"
)

func jobItemFrom(job store.Job) JobItem {
	item := JobItem{
		ID:                 job.ID.String(),
		ProjectID:          job.ProjectID.String(),
		Domain:             job.Domain,
		Status:             job.Status,
		ProgressPercentage: job.ProgressPercentage,
		PagesCrawled:       job.PagesCrawled,
		PagesFailed:        job.PagesFailed,
		PagesDiscovered:    job.PagesDiscovered,
		CreatedAt:          job.CreatedAt,
	}
	if job.HealthScore.Valid {
		score := int(job.HealthScore.Int32)
		item.HealthScore = &score
	}
	if job.StartedAt.Valid {
		t := job.StartedAt.Time
		item.StartedAt = &t
	}
	if job.CompletedAt.Valid {
		t := job.CompletedAt.Time
		item.CompletedAt = &t
	}
	return item
}

// jobsListHandler returns recent jobs, newest first, optionally filtered by
// status.
func jobsListHandler(c *fiber.Ctx) error {
	st := c.Locals("store").(*store.Store)

	status := c.Query("status")
	if status != "" && !validStatusFilter(status) {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "invalid status filter",
		})
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Success: false,
				Code:    "BAD_REQUEST",
				Error:   "invalid limit value",
			})
		}
		if n > 500 {
			n = 500
		}
		limit = n
	}

	list, err := st.ListJobs(c.Context(), status, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "JOB_LIST_FAILED",
			Error:   err.Error(),
		})
	}

	items := make([]JobItem, 0, len(list))
	for _, job := range list {
		items = append(items, jobItemFrom(job))
	}

	return c.Status(fiber.StatusOK).JSON(ListJobsResponse{
		Success: true,
		Jobs:    items,
	})
}

// jobDetailHandler returns one job with its per-issue aggregates.
func jobDetailHandler(c *fiber.Ctx) error {
	st := c.Locals("store").(*store.Store)

	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "invalid job id",
		})
	}

	job, err := st.GetJob(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Success: false,
				Code:    "NOT_FOUND",
				Error:   "job not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "JOB_LOOKUP_FAILED",
			Error:   err.Error(),
		})
	}

	summaries, err := st.JobIssueSummaries(c.Context(), job.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "ISSUE_SUMMARY_FAILED",
			Error:   err.Error(),
		})
	}

	detail := &JobDetailItem{
		JobItem:       jobItemFrom(job),
		TotalIssues:   job.TotalIssues,
		ErrorsCount:   job.ErrorsCount,
		WarningsCount: job.WarningsCount,
		NoticesCount:  job.NoticesCount,
		PassedCount:   job.PassedCount,
		Issues:        make([]IssueSummaryItem, 0, len(summaries)),
	}
	if job.CurrentURL.Valid {
		detail.CurrentURL = job.CurrentURL.String
	}
	if job.ErrorMessage.Valid {
		detail.ErrorMessage = job.ErrorMessage.String
	}
	if job.CategoryScores.Valid {
		detail.CategoryScores = json.RawMessage(job.CategoryScores.RawMessage)
	}
	if job.ResumedFrom.Valid {
		detail.ResumedFrom = job.ResumedFrom.UUID.String()
	}
	if job.DurationSeconds.Valid {
		d := int(job.DurationSeconds.Int32)
		detail.DurationSeconds = &d
	}
	for _, s := range summaries {
		detail.Issues = append(detail.Issues, IssueSummaryItem{
			Code:          s.Code,
			Name:          s.Name,
			Category:      s.Category,
			Severity:      s.Severity,
			AffectedPages: s.AffectedPagesCount,
		})
	}

	return c.Status(fiber.StatusOK).JSON(JobDetailResponse{
		Success: true,
		Job:     detail,
	})
}

// jobEnqueueHandler creates an ad-hoc audit job for a project.
func jobEnqueueHandler(c *fiber.Ctx) error {
	svc := c.Locals("jobs").(services.JobService)

	var req EnqueueJobRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "invalid JSON body",
		})
	}

	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "invalid project id",
		})
	}

	id, err := svc.Enqueue(c.Context(), projectID, req.Settings)
	switch {
	case errors.Is(err, services.ErrProjectNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Success: false,
			Code:    "NOT_FOUND",
			Error:   "project not found",
		})
	case errors.Is(err, services.ErrJobAlreadyActive):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Success: false,
			Code:    "JOB_ALREADY_ACTIVE",
			Error:   "project already has a pending or processing job",
		})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "JOB_ENQUEUE_FAILED",
			Error:   err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(EnqueueJobResponse{
		Success: true,
		ID:      id.String(),
		Status:  string(jobs.StatusPending),
	})
}

// jobCancelHandler flips a pending or processing job to cancelled. A crawl
// in flight stops cooperatively via the status notification.
func jobCancelHandler(c *fiber.Ctx) error {
	svc := c.Locals("jobs").(services.JobService)

	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "invalid job id",
		})
	}

	if err := svc.Cancel(c.Context(), jobID); err != nil {
		if errors.Is(err, services.ErrJobNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Success: false,
				Code:    "NOT_FOUND",
				Error:   "job not found",
			})
		}
		if errors.Is(err, services.ErrJobNotCancellable) {
			return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
				Success: false,
				Code:    "JOB_NOT_CANCELLABLE",
				Error:   "job is not pending or processing",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "JOB_CANCEL_FAILED",
			Error:   err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(CancelJobResponse{
		Success: true,
		ID:      jobID.String(),
		Status:  string(jobs.StatusCancelled),
	})
}

func validStatusFilter(status string) bool {
	switch jobs.Status(status) {
	case jobs.StatusPending, jobs.StatusProcessing, jobs.StatusCompleted,
		jobs.StatusFailed, jobs.StatusCancelled:
		return true
	}
	return false
}
