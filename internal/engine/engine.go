package engine

import (
	"context"
	"net/http"
	"time"

	"hostforge/internal/domain"
	"hostforge/internal/infra"
	"hostforge/internal/store"
)

// Store is the subset of the state store the engine drives. Every step reads
// project state through it and persists newly acquired references before
// returning.
type Store interface {
	PatchJob(ctx context.Context, id string, patch store.JobPatch) error
	AppendJobLog(ctx context.Context, jobID string, level domain.LogLevel, message string) error
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	GetProjectBySlug(ctx context.Context, slug string) (*domain.Project, error)
	PatchProject(ctx context.Context, id string, patch store.ProjectPatch) error
	UpdateProjectStatus(ctx context.Context, id string, status domain.ProjectStatus) error
	UpsertDomain(ctx context.Context, d *domain.DomainRecord) error
	GetDomainByName(ctx context.Context, name string) (*domain.DomainRecord, error)
	UpdateDomainStatus(ctx context.Context, name string, status domain.DomainStatus) error
}

// LockFunc acquires a per-project lock for the duration of a job. The
// returned release func must be called exactly once.
type LockFunc func(ctx context.Context, projectID string) (release func(context.Context) error, err error)

// Timing bundles the engine's retry and polling budgets. The zero value gets
// production defaults; tests shrink the intervals.
type Timing struct {
	MaxRetries int
	RetryDelay time.Duration

	CIPollInterval time.Duration
	CITimeout      time.Duration

	DeployPollInterval time.Duration
	DeployTimeout      time.Duration

	VerifyPollInterval time.Duration
	VerifyTimeout      time.Duration

	DomainPollInterval time.Duration
	DomainTimeout      time.Duration
}

func (t Timing) withDefaults() Timing {
	if t.MaxRetries == 0 {
		t.MaxRetries = 3
	}
	if t.RetryDelay == 0 {
		t.RetryDelay = 2 * time.Second
	}
	if t.CIPollInterval == 0 {
		t.CIPollInterval = 15 * time.Second
	}
	if t.CITimeout == 0 {
		t.CITimeout = 10 * time.Minute
	}
	if t.DeployPollInterval == 0 {
		t.DeployPollInterval = 10 * time.Second
	}
	if t.DeployTimeout == 0 {
		t.DeployTimeout = 10 * time.Minute
	}
	if t.VerifyPollInterval == 0 {
		t.VerifyPollInterval = 10 * time.Second
	}
	if t.VerifyTimeout == 0 {
		t.VerifyTimeout = 5 * time.Minute
	}
	if t.DomainPollInterval == 0 {
		t.DomainPollInterval = 30 * time.Second
	}
	if t.DomainTimeout == 0 {
		t.DomainTimeout = 30 * time.Minute
	}
	return t
}

// Options configures an Engine.
type Options struct {
	Store          Store
	Source         SourceHost
	Hosting        HostingPlatform
	Registrar      Registrar
	Lock           LockFunc
	Logger         infra.Logger
	Plans          *domain.PlanCatalog
	PlatformDomain string
	HTTPClient     *http.Client
	Timing         Timing
}

// Engine turns a job request into an ordered, retryable sequence of external
// side-effecting operations. One Engine serves the whole worker; distinct
// jobs may run concurrently, steps of a single job never do.
type Engine struct {
	store          Store
	source         SourceHost
	hosting        HostingPlatform
	registrar      Registrar
	lock           LockFunc
	logger         infra.Logger
	plans          *domain.PlanCatalog
	platformDomain string
	httpClient     *http.Client
	timing         Timing
}

// New constructs an Engine, applying timing defaults and a probe HTTP client
// when none is supplied.
func New(opts Options) *Engine {
	plans := opts.Plans
	if plans == nil {
		plans = domain.DefaultPlanCatalog()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	platformDomain := opts.PlatformDomain
	if platformDomain == "" {
		platformDomain = "hostforge.app"
	}
	return &Engine{
		store:          opts.Store,
		source:         opts.Source,
		hosting:        opts.Hosting,
		registrar:      opts.Registrar,
		lock:           opts.Lock,
		logger:         opts.Logger,
		plans:          plans,
		platformDomain: platformDomain,
		httpClient:     client,
		timing:         opts.Timing.withDefaults(),
	}
}
