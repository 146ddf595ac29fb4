package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"hostforge/internal/domain"
	"hostforge/internal/middleware"
	"hostforge/internal/queue"
)

type createProjectRequest struct {
	Name          string `json:"name" validate:"required,min=1,max=100"`
	Plan          string `json:"plan" validate:"required"`
	PendingDomain string `json:"pending_domain" validate:"omitempty,fqdn"`
}

// CreateProject registers a project and enqueues its provisioning job. The
// heavy lifting happens on the worker; this handler returns as soon as the
// job is queued.
func (a *App) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := a.decodeValid(r, &req); err != nil {
		a.jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan := domain.Plan(req.Plan)
	if !plan.Valid() {
		a.jsonError(w, http.StatusBadRequest, "unknown plan: "+req.Plan)
		return
	}

	slug := domain.Slugify(req.Name)
	if !domain.ValidSlug(slug) {
		a.jsonError(w, http.StatusBadRequest, "name does not produce a usable slug")
		return
	}

	if existing, err := a.Store.GetProjectBySlug(r.Context(), slug); err == nil && existing != nil {
		a.jsonError(w, http.StatusConflict, "slug already taken: "+slug)
		return
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		a.Logger.Error().Err(err).Msg("handlers: slug lookup failed")
		a.jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	project := &domain.Project{
		ID:            uuid.NewString(),
		UserID:        middleware.UserIDFromContext(r.Context()),
		Name:          req.Name,
		Slug:          slug,
		Plan:          plan,
		Status:        domain.ProjectStatusCreating,
		PendingDomain: req.PendingDomain,
	}
	if err := a.Store.CreateProject(r.Context(), project); err != nil {
		a.Logger.Error().Err(err).Msg("handlers: create project failed")
		a.jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	jobID := uuid.NewString()
	if err := a.Store.CreateJob(r.Context(), jobID, project.ID, domain.JobTypeCreate); err != nil {
		a.Logger.Error().Err(err).Msg("handlers: create job failed")
		a.jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := a.Queue.Enqueue(r.Context(), queue.Dispatch{
		JobID:     jobID,
		ProjectID: project.ID,
		Type:      domain.JobTypeCreate,
	}); err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: dispatch failed")
		a.jsonError(w, http.StatusBadGateway, "worker unavailable")
		return
	}

	a.json(w, http.StatusAccepted, map[string]any{
		"project": toProjectResponse(project),
		"job_id":  jobID,
	})
}

// GetProject returns one project by id.
func (a *App) GetProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	project, err := a.Store.GetProject(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.jsonError(w, http.StatusNotFound, "project not found")
			return
		}
		a.Logger.Error().Err(err).Str("project_id", id).Msg("handlers: get project failed")
		a.jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	a.json(w, http.StatusOK, toProjectResponse(project))
}
