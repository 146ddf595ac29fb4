package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"hostforge/internal/domain"
	"hostforge/internal/providers/namecheap"
	"hostforge/internal/queue"
	"hostforge/internal/store"
)

// fakeStore is an in-memory handlers.Store.
type fakeStore struct {
	projects map[string]*domain.Project
	jobs     map[string]*domain.Job
	logs     map[string][]domain.JobLogEntry
	usage    map[string]int

	allowanceGranted int
	allowanceUsed    int
	allowanceErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		projects:         map[string]*domain.Project{},
		jobs:             map[string]*domain.Job{},
		logs:             map[string][]domain.JobLogEntry{},
		usage:            map[string]int{},
		allowanceGranted: 1000,
	}
}

func (s *fakeStore) CreateProject(_ context.Context, p *domain.Project) error {
	s.projects[p.ID] = p
	return nil
}

func (s *fakeStore) GetProject(_ context.Context, id string) (*domain.Project, error) {
	p, ok := s.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) GetProjectBySlug(_ context.Context, slug string) (*domain.Project, error) {
	for _, p := range s.projects {
		if p.Slug == slug {
			return p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeStore) PatchProject(_ context.Context, id string, patch store.ProjectPatch) error {
	return nil
}

func (s *fakeStore) CreateJob(_ context.Context, id, projectID string, typ domain.JobType) error {
	s.jobs[id] = &domain.Job{ID: id, ProjectID: projectID, Type: typ, State: domain.JobStateQueued}
	return nil
}

func (s *fakeStore) GetJob(_ context.Context, id string) (*domain.Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return j, nil
}

func (s *fakeStore) ListJobsByProject(_ context.Context, projectID string) ([]domain.Job, error) {
	var out []domain.Job
	for _, j := range s.jobs {
		if j.ProjectID == projectID {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (s *fakeStore) ListJobLogs(_ context.Context, jobID string) ([]domain.JobLogEntry, error) {
	return s.logs[jobID], nil
}

func (s *fakeStore) RecordUsage(_ context.Context, projectID, requestID, model string, credits int) (bool, error) {
	if _, seen := s.usage[requestID]; seen {
		return false, nil
	}
	if s.allowanceErr != nil {
		if errors.Is(s.allowanceErr, domain.ErrNotFound) {
			return false, domain.ErrNoAllowancePeriod
		}
		return false, s.allowanceErr
	}
	if s.allowanceUsed+credits > s.allowanceGranted {
		return false, domain.ErrInsufficientCredits
	}
	s.allowanceUsed += credits
	s.usage[requestID] = credits
	return true, nil
}

func (s *fakeStore) CurrentAllowance(_ context.Context, projectID string) (int, int, error) {
	if s.allowanceErr != nil {
		return 0, 0, s.allowanceErr
	}
	return s.allowanceGranted, s.allowanceUsed, nil
}

type fakeQueue struct {
	dispatches []queue.Dispatch
	err        error
}

func (q *fakeQueue) Enqueue(_ context.Context, d queue.Dispatch) error {
	if q.err != nil {
		return q.err
	}
	q.dispatches = append(q.dispatches, d)
	return nil
}

type fakeChecker struct {
	results []namecheap.Availability
}

func (c *fakeChecker) CheckAvailability(_ context.Context, names []string) ([]namecheap.Availability, error) {
	return c.results, nil
}

func newTestApp() (*App, *fakeStore, *fakeQueue) {
	st := newFakeStore()
	q := &fakeQueue{}
	app := NewApp(st, q, &fakeChecker{}, zerolog.Nop())
	return app, st, q
}

// router mounts the handlers with the same URL params as production.
func router(app *App) http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/projects", app.CreateProject)
	r.Get("/v1/projects/{id}", app.GetProject)
	r.Post("/v1/projects/{id}/jobs", app.CreateJob)
	r.Get("/v1/projects/{id}/jobs", app.ListProjectJobs)
	r.Get("/v1/projects/{id}/allowance", app.GetAllowance)
	r.Get("/v1/jobs/{id}", app.GetJob)
	r.Get("/v1/jobs/{id}/logs", app.GetJobLogs)
	r.Get("/v1/domains/check", app.CheckDomains)
	r.Post("/v1/usage", app.RecordUsage)
	return r
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateProjectEnqueuesCreateJob(t *testing.T) {
	app, st, q := newTestApp()
	rec := doJSON(t, router(app), http.MethodPost, "/v1/projects", map[string]string{
		"name": "Crème Brûlée Café",
		"plan": "website",
	})

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Project struct {
			ID   string `json:"id"`
			Slug string `json:"slug"`
		} `json:"project"`
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Project.Slug != "creme-brulee-cafe" {
		t.Errorf("slug = %q", resp.Project.Slug)
	}
	if _, ok := st.projects[resp.Project.ID]; !ok {
		t.Error("project not persisted")
	}
	if len(q.dispatches) != 1 || q.dispatches[0].JobID != resp.JobID {
		t.Errorf("dispatches = %+v", q.dispatches)
	}
	if q.dispatches[0].Type != domain.JobTypeCreate {
		t.Errorf("dispatch type = %q", q.dispatches[0].Type)
	}
}

func TestCreateProjectRejectsUnknownPlan(t *testing.T) {
	app, _, _ := newTestApp()
	rec := doJSON(t, router(app), http.MethodPost, "/v1/projects", map[string]string{
		"name": "Acme",
		"plan": "enterprise",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreateProjectRejectsTakenSlug(t *testing.T) {
	app, st, _ := newTestApp()
	st.projects["existing"] = &domain.Project{ID: "existing", Slug: "acme"}

	rec := doJSON(t, router(app), http.MethodPost, "/v1/projects", map[string]string{
		"name": "Acme",
		"plan": "website",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestCreateJobRejectsUnsupportedTypes(t *testing.T) {
	app, st, _ := newTestApp()
	st.projects["proj-1"] = &domain.Project{ID: "proj-1", Slug: "acme"}

	for _, typ := range []string{"create", "migrate", ""} {
		rec := doJSON(t, router(app), http.MethodPost, "/v1/projects/proj-1/jobs", map[string]string{
			"type": typ,
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("type %q: status = %d", typ, rec.Code)
		}
	}
}

func TestCreateJobAttachDomainNeedsPendingDomain(t *testing.T) {
	app, st, _ := newTestApp()
	st.projects["proj-1"] = &domain.Project{ID: "proj-1", Slug: "acme"}

	rec := doJSON(t, router(app), http.MethodPost, "/v1/projects/proj-1/jobs", map[string]string{
		"type": "attach_domain",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreateJobDispatchesRedeploy(t *testing.T) {
	app, st, q := newTestApp()
	st.projects["proj-1"] = &domain.Project{ID: "proj-1", Slug: "acme"}

	rec := doJSON(t, router(app), http.MethodPost, "/v1/projects/proj-1/jobs", map[string]string{
		"type": "redeploy",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(q.dispatches) != 1 || q.dispatches[0].Type != domain.JobTypeRedeploy {
		t.Errorf("dispatches = %+v", q.dispatches)
	}
}

func TestGetJobNotFound(t *testing.T) {
	app, _, _ := newTestApp()
	rec := doJSON(t, router(app), http.MethodGet, "/v1/jobs/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRecordUsageIsIdempotent(t *testing.T) {
	app, st, _ := newTestApp()
	body := map[string]any{
		"project_id":    "5f9cbb8e-3f3c-4f44-9b1a-6a0a0c9bc001",
		"request_id":    "req-1",
		"model":         "gpt-4o",
		"input_tokens":  1000,
		"output_tokens": 1000,
	}

	first := doJSON(t, router(app), http.MethodPost, "/v1/usage", body)
	if first.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", first.Code, first.Body.String())
	}
	var resp struct {
		Credits   int64 `json:"credits"`
		Duplicate bool  `json:"duplicate"`
	}
	json.Unmarshal(first.Body.Bytes(), &resp)
	if resp.Credits != 20 || resp.Duplicate {
		t.Errorf("first = %+v", resp)
	}

	second := doJSON(t, router(app), http.MethodPost, "/v1/usage", body)
	json.Unmarshal(second.Body.Bytes(), &resp)
	if !resp.Duplicate {
		t.Error("replay not flagged as duplicate")
	}
	if st.usage["req-1"] != 20 {
		t.Errorf("ledger = %v", st.usage)
	}
}

func TestRecordUsageWithoutAllowancePeriod(t *testing.T) {
	app, st, _ := newTestApp()
	st.allowanceErr = domain.ErrNotFound

	rec := doJSON(t, router(app), http.MethodPost, "/v1/usage", map[string]any{
		"project_id":   "5f9cbb8e-3f3c-4f44-9b1a-6a0a0c9bc001",
		"request_id":   "req-1",
		"model":        "gpt-4o",
		"input_tokens": 1000,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(st.usage) != 0 {
		t.Errorf("ledger = %v, want empty", st.usage)
	}
}

func TestRecordUsageRejectsExhaustedCredits(t *testing.T) {
	app, st, _ := newTestApp()
	st.allowanceGranted = 10
	st.allowanceUsed = 5

	rec := doJSON(t, router(app), http.MethodPost, "/v1/usage", map[string]any{
		"project_id":    "5f9cbb8e-3f3c-4f44-9b1a-6a0a0c9bc001",
		"request_id":    "req-1",
		"model":         "gpt-4o",
		"input_tokens":  1000,
		"output_tokens": 1000,
	})
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if st.allowanceUsed != 5 || len(st.usage) != 0 {
		t.Errorf("used = %d, ledger = %v", st.allowanceUsed, st.usage)
	}
}

func TestRecordUsageRejectsUnknownModel(t *testing.T) {
	app, _, _ := newTestApp()
	rec := doJSON(t, router(app), http.MethodPost, "/v1/usage", map[string]any{
		"project_id":   "5f9cbb8e-3f3c-4f44-9b1a-6a0a0c9bc001",
		"request_id":   "req-1",
		"model":        "gpt-9",
		"input_tokens": 100,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetAllowanceReportsRemaining(t *testing.T) {
	app, st, _ := newTestApp()
	st.allowanceGranted = 500
	st.allowanceUsed = 120

	rec := doJSON(t, router(app), http.MethodGet, "/v1/projects/proj-1/allowance", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Granted   int `json:"credits_granted"`
		Used      int `json:"credits_used"`
		Remaining int `json:"credits_remaining"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Granted != 500 || resp.Used != 120 || resp.Remaining != 380 {
		t.Errorf("allowance = %+v", resp)
	}
}

func TestGetAllowanceWithoutPeriod(t *testing.T) {
	app, st, _ := newTestApp()
	st.allowanceErr = domain.ErrNotFound

	rec := doJSON(t, router(app), http.MethodGet, "/v1/projects/proj-1/allowance", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCheckDomainsValidatesInput(t *testing.T) {
	app, _, _ := newTestApp()
	h := router(app)

	for _, q := range []string{"", "?domains=", "?domains=notadomain", "?domains=a.com,b.com,c.com,d.com,e.com,f.com"} {
		rec := doJSON(t, h, http.MethodGet, "/v1/domains/check"+q, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("query %q: status = %d", q, rec.Code)
		}
	}
}

func TestCheckDomainsReturnsResults(t *testing.T) {
	st := newFakeStore()
	checker := &fakeChecker{results: []namecheap.Availability{
		{Domain: "acme.com", Available: true, PriceCents: 1688},
	}}
	app := NewApp(st, &fakeQueue{}, checker, zerolog.Nop())

	rec := doJSON(t, router(app), http.MethodGet, "/v1/domains/check?domains=acme.com", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Results []domainAvailabilityResponse `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].PriceCents != 1688 {
		t.Errorf("results = %+v", resp.Results)
	}
}
