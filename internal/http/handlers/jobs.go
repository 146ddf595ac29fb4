package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"hostforge/internal/domain"
	"hostforge/internal/queue"
)

type createJobRequest struct {
	Type string `json:"type" validate:"required"`
}

// CreateJob enqueues a maintenance job (upgrade, redeploy, attach_domain,
// release) for an existing project. Creation jobs come from CreateProject.
func (a *App) CreateJob(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	var req createJobRequest
	if err := a.decodeValid(r, &req); err != nil {
		a.jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobType := domain.JobType(req.Type)
	if !jobType.Valid() || jobType == domain.JobTypeCreate {
		a.jsonError(w, http.StatusBadRequest, "unsupported job type: "+req.Type)
		return
	}

	project, err := a.Store.GetProject(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.jsonError(w, http.StatusNotFound, "project not found")
			return
		}
		a.Logger.Error().Err(err).Str("project_id", projectID).Msg("handlers: get project failed")
		a.jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if jobType == domain.JobTypeAttachDomain && project.PendingDomain == "" {
		a.jsonError(w, http.StatusBadRequest, "project has no pending domain")
		return
	}

	jobID := uuid.NewString()
	if err := a.Store.CreateJob(r.Context(), jobID, project.ID, jobType); err != nil {
		a.Logger.Error().Err(err).Msg("handlers: create job failed")
		a.jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := a.Queue.Enqueue(r.Context(), queue.Dispatch{
		JobID:     jobID,
		ProjectID: project.ID,
		Type:      jobType,
	}); err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: dispatch failed")
		a.jsonError(w, http.StatusBadGateway, "worker unavailable")
		return
	}

	a.json(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"state":  string(domain.JobStateQueued),
	})
}

// GetJob returns one job by id.
func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := a.Store.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.jsonError(w, http.StatusNotFound, "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", id).Msg("handlers: get job failed")
		a.jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	a.json(w, http.StatusOK, toJobResponse(job))
}

// ListProjectJobs returns a project's jobs, newest first.
func (a *App) ListProjectJobs(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	jobs, err := a.Store.ListJobsByProject(r.Context(), projectID)
	if err != nil {
		a.Logger.Error().Err(err).Str("project_id", projectID).Msg("handlers: list jobs failed")
		a.jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]jobResponse, 0, len(jobs))
	for i := range jobs {
		out = append(out, toJobResponse(&jobs[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"jobs": out})
}

type jobLogResponse struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// GetJobLogs returns a job's durable log trail in append order.
func (a *App) GetJobLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := a.Store.GetJob(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.jsonError(w, http.StatusNotFound, "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", id).Msg("handlers: get job failed")
		a.jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	entries, err := a.Store.ListJobLogs(r.Context(), id)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", id).Msg("handlers: list job logs failed")
		a.jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]jobLogResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, jobLogResponse{
			Level:     string(e.Level),
			Message:   e.Message,
			Timestamp: e.Timestamp,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"logs": out})
}
