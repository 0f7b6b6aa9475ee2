package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"thirdcoast.systems/shorts/internal/jobs"
)

type createRequest struct {
	SourceRef string        `json:"source_ref" validate:"required"`
	UserRef   string        `json:"user_ref" validate:"max=256"`
	Settings  jobs.Settings `json:"settings"`
}

type jobResponse struct {
	ID           string             `json:"id"`
	UserRef      string             `json:"user_ref,omitempty"`
	SourceRef    string             `json:"source_ref,omitempty"`
	SourceTitle  string             `json:"source_title,omitempty"`
	Settings     *jobs.Settings     `json:"settings,omitempty"`
	Status       jobs.Status        `json:"status"`
	Progress     int                `json:"progress"`
	ErrorMessage string             `json:"error_message,omitempty"`
	CreatedAt    *time.Time         `json:"created_at,omitempty"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`
	Fragments    []fragmentResponse `json:"fragments,omitempty"`
}

type fragmentResponse struct {
	Number       int     `json:"number"`
	StartTime    float64 `json:"start_time"`
	Duration     float64 `json:"duration"`
	SizeBytes    int64   `json:"size_bytes"`
	ExternalLink string  `json:"external_link,omitempty"`
}

func toResponse(j *jobs.Job) jobResponse {
	created := j.CreatedAt
	settings := j.Settings
	return jobResponse{
		ID:           j.ID.String(),
		UserRef:      j.UserRef,
		SourceRef:    j.SourceRef,
		SourceTitle:  j.SourceTitle,
		Settings:     &settings,
		Status:       j.Status,
		Progress:     j.Progress,
		ErrorMessage: j.ErrorMessage,
		CreatedAt:    &created,
		CompletedAt:  j.CompletedAt,
	}
}

func requireID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (s *Server) handleCreate(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	req.SourceRef = strings.TrimSpace(req.SourceRef)
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	job, err := s.store.CreateJob(ctx, req.UserRef, req.SourceRef, req.Settings.Normalize(s.limits))
	if err != nil {
		slog.Error("failed to enqueue job", "source", req.SourceRef, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to enqueue")
	}
	slog.Info("job enqueued", "job_id", job.ID, "source", job.SourceRef)
	return c.JSON(http.StatusCreated, jobResponse{ID: job.ID.String(), Status: job.Status})
}

func (s *Server) handleGet(c echo.Context) error {
	id, err := requireID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	job, err := s.store.GetJob(ctx, id)
	if errors.Is(err, jobs.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	}
	if err != nil {
		slog.Error("failed to load job", "job_id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load job")
	}

	frags, err := s.store.ListFragments(ctx, id)
	if err != nil {
		slog.Error("failed to load fragments", "job_id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load job")
	}

	resp := toResponse(job)
	for _, f := range frags {
		resp.Fragments = append(resp.Fragments, fragmentResponse{
			Number:       f.Number,
			StartTime:    f.StartTime,
			Duration:     f.Duration,
			SizeBytes:    f.SizeBytes,
			ExternalLink: f.ExternalLink,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleList(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	list, err := s.store.ListRecentJobs(c.Request().Context(), limit)
	if err != nil {
		slog.Error("failed to list jobs", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list jobs")
	}
	out := make([]jobResponse, 0, len(list))
	for _, j := range list {
		out = append(out, toResponse(j))
	}
	return c.JSON(http.StatusOK, out)
}

// handleCancel marks the job failed. Terminal jobs are left as they are.
func (s *Server) handleCancel(c echo.Context) error {
	id, err := requireID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := s.store.GetJob(ctx, id); errors.Is(err, jobs.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	} else if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load job")
	}

	err = s.store.Fail(ctx, id, jobs.Message(&jobs.Error{Kind: jobs.KindCancelled}))
	if err != nil && !errors.Is(err, jobs.ErrTerminal) {
		slog.Error("failed to cancel job", "job_id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to cancel job")
	}

	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load job")
	}
	slog.Info("job cancel requested", "job_id", id, "status", job.Status)
	return c.JSON(http.StatusOK, jobResponse{ID: id.String(), Status: job.Status, ErrorMessage: job.ErrorMessage})
}
