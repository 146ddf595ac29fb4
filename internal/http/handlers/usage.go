package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hostforge/internal/credits"
	"hostforge/internal/domain"
)

type recordUsageRequest struct {
	ProjectID    string `json:"project_id" validate:"required,uuid4"`
	RequestID    string `json:"request_id" validate:"required"`
	Model        string `json:"model" validate:"required"`
	InputTokens  int64  `json:"input_tokens" validate:"gte=0"`
	OutputTokens int64  `json:"output_tokens" validate:"gte=0"`
}

// RecordUsage bills one AI request against a project's credit allowance.
// Replays of the same request_id are acknowledged without double billing.
func (a *App) RecordUsage(w http.ResponseWriter, r *http.Request) {
	var req recordUsageRequest
	if err := a.decodeValid(r, &req); err != nil {
		a.jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	billed, err := credits.Calculate(req.Model, req.InputTokens, req.OutputTokens)
	if err != nil {
		a.jsonError(w, http.StatusBadRequest, "unknown model: "+req.Model)
		return
	}

	recorded, err := a.Store.RecordUsage(r.Context(), req.ProjectID, req.RequestID, req.Model, int(billed))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoAllowancePeriod):
			a.jsonError(w, http.StatusNotFound, "no active allowance period")
		case errors.Is(err, domain.ErrInsufficientCredits):
			a.jsonError(w, http.StatusPaymentRequired, "insufficient credits")
		default:
			a.Logger.Error().Err(err).Str("project_id", req.ProjectID).Msg("handlers: record usage failed")
			a.jsonError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	a.json(w, http.StatusOK, map[string]any{
		"credits":   billed,
		"duplicate": !recorded,
	})
}

// GetAllowance reports the project's current AI credit allowance period.
func (a *App) GetAllowance(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	granted, used, err := a.Store.CurrentAllowance(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.jsonError(w, http.StatusNotFound, "no active allowance period")
			return
		}
		a.Logger.Error().Err(err).Str("project_id", projectID).Msg("handlers: allowance lookup failed")
		a.jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	remaining := granted - used
	if remaining < 0 {
		remaining = 0
	}
	a.json(w, http.StatusOK, map[string]int{
		"credits_granted":   granted,
		"credits_used":      used,
		"credits_remaining": remaining,
	})
}
