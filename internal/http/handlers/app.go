package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"hostforge/internal/domain"
	"hostforge/internal/infra"
	"hostforge/internal/providers/namecheap"
	"hostforge/internal/queue"
	"hostforge/internal/store"
)

// Store is the persistence surface the API handlers drive.
type Store interface {
	CreateProject(ctx context.Context, p *domain.Project) error
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	GetProjectBySlug(ctx context.Context, slug string) (*domain.Project, error)
	PatchProject(ctx context.Context, id string, patch store.ProjectPatch) error
	CreateJob(ctx context.Context, id, projectID string, typ domain.JobType) error
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	ListJobsByProject(ctx context.Context, projectID string) ([]domain.Job, error)
	ListJobLogs(ctx context.Context, jobID string) ([]domain.JobLogEntry, error)
	RecordUsage(ctx context.Context, projectID, requestID, model string, credits int) (bool, error)
	CurrentAllowance(ctx context.Context, projectID string) (granted, used int, err error)
}

// Dispatcher hands accepted jobs to the worker.
type Dispatcher interface {
	Enqueue(ctx context.Context, dispatch queue.Dispatch) error
}

// DomainChecker answers registrar availability queries.
type DomainChecker interface {
	CheckAvailability(ctx context.Context, domainNames []string) ([]namecheap.Availability, error)
}

// App bundles the dependencies shared by all API handlers.
type App struct {
	Store    Store
	Queue    Dispatcher
	Domains  DomainChecker
	Logger   infra.Logger
	validate *validator.Validate
}

// NewApp constructs the handler set.
func NewApp(st Store, q Dispatcher, domains DomainChecker, logger infra.Logger) *App {
	return &App{
		Store:    st,
		Queue:    q,
		Domains:  domains,
		Logger:   logger,
		validate: validator.New(),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) jsonError(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]string{"error": message})
}

// decodeValid decodes a JSON body and runs struct validation on it.
func (a *App) decodeValid(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}
	if err := a.validate.Struct(dst); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) && len(fields) > 0 {
			return errors.New("invalid field: " + fields[0].Field())
		}
		return err
	}
	return nil
}

// Health reports process liveness.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

type jobResponse struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"project_id"`
	Type       string     `json:"type"`
	State      string     `json:"state"`
	Step       string     `json:"step,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toJobResponse(j *domain.Job) jobResponse {
	return jobResponse{
		ID:         j.ID,
		ProjectID:  j.ProjectID,
		Type:       string(j.Type),
		State:      string(j.State),
		Step:       j.Step,
		Error:      j.Error,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
		CreatedAt:  j.CreatedAt,
	}
}

type projectResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	Plan          string    `json:"plan"`
	Status        string    `json:"status"`
	PrimaryURL    string    `json:"primary_url,omitempty"`
	PendingDomain string    `json:"pending_domain,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toProjectResponse(p *domain.Project) projectResponse {
	return projectResponse{
		ID:            p.ID,
		Name:          p.Name,
		Slug:          p.Slug,
		Plan:          string(p.Plan),
		Status:        string(p.Status),
		PrimaryURL:    p.PrimaryURL,
		PendingDomain: p.PendingDomain,
		CreatedAt:     p.CreatedAt,
	}
}
