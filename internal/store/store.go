package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hostforge/internal/domain"
	"hostforge/internal/infra"
	"hostforge/internal/sqlinline"
)

// Store is the authoritative persisted record of jobs, logs, projects and
// domains, backed by PostgreSQL.
type Store struct {
	runner infra.SQLExecutor
	pool   *pgxpool.Pool
	logger infra.Logger
}

// New creates a store over a pgx pool. All statements run through the audit
// logging SQLRunner.
func New(pool *pgxpool.Pool, logger infra.Logger) *Store {
	return &Store{
		runner: infra.NewSQLRunner(pool, logger),
		pool:   pool,
		logger: logger,
	}
}

// NewWithExecutor creates a store over a caller-supplied executor. Advisory
// project locks need a pinned connection and are unavailable in this mode;
// it exists for tests.
func NewWithExecutor(exec infra.SQLExecutor, logger infra.Logger) *Store {
	return &Store{runner: exec, logger: logger}
}

// JobPatch is a partial job update. Nil fields are left untouched.
type JobPatch struct {
	State *domain.JobState
	Step  *string
	Error *string
}

// ProjectPatch is a partial project update. Nil fields are left untouched.
type ProjectPatch struct {
	GitHubRepoID    *string
	VercelProjectID *string
	PrimaryURL      *string
	PendingDomain   *string
}

func (s *Store) CreateJob(ctx context.Context, id, projectID string, typ domain.JobType) error {
	if !typ.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownJobType, typ)
	}
	_, err := s.runner.Exec(ctx, sqlinline.QInsertJob, id, projectID, string(typ))
	return err
}

func (s *Store) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	row := s.runner.QueryRow(ctx, sqlinline.QGetJob, id)
	return scanJob(row)
}

func (s *Store) PatchJob(ctx context.Context, id string, patch JobPatch) error {
	var state *string
	if patch.State != nil {
		v := string(*patch.State)
		state = &v
	}
	_, err := s.runner.Exec(ctx, sqlinline.QPatchJob, id, state, patch.Step, patch.Error)
	return err
}

func (s *Store) ListJobsByProject(ctx context.Context, projectID string) ([]domain.Job, error) {
	rows, err := s.runner.Query(ctx, sqlinline.QListJobsByProject, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (s *Store) AppendJobLog(ctx context.Context, jobID string, level domain.LogLevel, message string) error {
	_, err := s.runner.Exec(ctx, sqlinline.QAppendJobLog, jobID, string(level), message)
	return err
}

func (s *Store) ListJobLogs(ctx context.Context, jobID string) ([]domain.JobLogEntry, error) {
	rows, err := s.runner.Query(ctx, sqlinline.QListJobLogs, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.JobLogEntry
	for rows.Next() {
		var e domain.JobLogEntry
		var level string
		if err := rows.Scan(&e.ID, &e.JobID, &level, &e.Message, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Level = domain.LogLevel(level)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// FailStaleJobs marks jobs stuck in running longer than olderThan as failed
// and returns the affected job ids.
func (s *Store) FailStaleJobs(ctx context.Context, olderThan time.Duration) ([]string, error) {
	interval := fmt.Sprintf("%d seconds", int(olderThan.Seconds()))
	rows, err := s.runner.Query(ctx, sqlinline.QFailStaleJobs, interval)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) CreateProject(ctx context.Context, p *domain.Project) error {
	var pending *string
	if p.PendingDomain != "" {
		pending = &p.PendingDomain
	}
	_, err := s.runner.Exec(ctx, sqlinline.QInsertProject,
		p.ID, p.UserID, p.Name, p.Slug, string(p.Plan), pending)
	return err
}

func (s *Store) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	row := s.runner.QueryRow(ctx, sqlinline.QGetProject, id)
	return scanProject(row)
}

func (s *Store) GetProjectBySlug(ctx context.Context, slug string) (*domain.Project, error) {
	row := s.runner.QueryRow(ctx, sqlinline.QGetProjectBySlug, slug)
	return scanProject(row)
}

func (s *Store) PatchProject(ctx context.Context, id string, patch ProjectPatch) error {
	_, err := s.runner.Exec(ctx, sqlinline.QPatchProject, id,
		patch.GitHubRepoID, patch.VercelProjectID, patch.PrimaryURL, patch.PendingDomain)
	return err
}

func (s *Store) UpdateProjectStatus(ctx context.Context, id string, status domain.ProjectStatus) error {
	_, err := s.runner.Exec(ctx, sqlinline.QUpdateProjectStatus, id, string(status))
	return err
}

func (s *Store) UpsertDomain(ctx context.Context, d *domain.DomainRecord) error {
	_, err := s.runner.Exec(ctx, sqlinline.QUpsertDomain,
		d.ID, d.ProjectID, d.DomainName, d.Registrar, string(d.Status),
		d.PurchasePriceCents, d.RenewalPriceCents, d.RenewalDate)
	return err
}

func (s *Store) GetDomainByName(ctx context.Context, name string) (*domain.DomainRecord, error) {
	row := s.runner.QueryRow(ctx, sqlinline.QGetDomainByName, name)
	return scanDomain(row)
}

func (s *Store) UpdateDomainStatus(ctx context.Context, name string, status domain.DomainStatus) error {
	_, err := s.runner.Exec(ctx, sqlinline.QUpdateDomainStatus, name, string(status))
	return err
}

// DomainsDueForRenewal lists active domains whose renewal date falls within
// the window.
func (s *Store) DomainsDueForRenewal(ctx context.Context, window time.Duration) ([]domain.DomainRecord, error) {
	interval := fmt.Sprintf("%d seconds", int(window.Seconds()))
	rows, err := s.runner.Query(ctx, sqlinline.QDomainsDueForRenewal, interval)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.DomainRecord
	for rows.Next() {
		rec, err := scanDomain(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (s *Store) AdvanceDomainRenewal(ctx context.Context, name string) error {
	_, err := s.runner.Exec(ctx, sqlinline.QAdvanceDomainRenewal, name)
	return err
}

// RecordUsage deducts AI credits for a request exactly once. Re-delivery of
// the same requestId returns deducted=false without touching the ledger. The
// deduction fails with ErrNoAllowancePeriod when no period is open and with
// ErrInsufficientCredits when it would exceed the granted budget; in both
// cases the usage event is rolled back so event and ledger stay in step.
func (s *Store) RecordUsage(ctx context.Context, projectID, requestID, model string, credits int) (bool, error) {
	tag, err := s.runner.Exec(ctx, sqlinline.QInsertUsageEvent, projectID, requestID, model, credits)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	tag, err = s.runner.Exec(ctx, sqlinline.QDeductCredits, projectID, credits)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		if _, delErr := s.runner.Exec(ctx, sqlinline.QDeleteUsageEvent, requestID); delErr != nil {
			return false, delErr
		}
		if _, _, err := s.CurrentAllowance(ctx, projectID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return false, domain.ErrNoAllowancePeriod
			}
			return false, err
		}
		return false, domain.ErrInsufficientCredits
	}
	return true, nil
}

// CurrentAllowance returns the granted and used credits for the project's
// active allowance period. domain.ErrNotFound means no period is open.
func (s *Store) CurrentAllowance(ctx context.Context, projectID string) (granted, used int, err error) {
	row := s.runner.QueryRow(ctx, sqlinline.QCurrentAllowance, projectID)
	if err := row.Scan(&granted, &used); err != nil {
		if infra.IsNoRows(err) {
			return 0, 0, domain.ErrNotFound
		}
		return 0, 0, err
	}
	return granted, used, nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var j domain.Job
	var typ, state string
	if err := row.Scan(&j.ID, &j.ProjectID, &typ, &state, &j.Step, &j.Error,
		&j.StartedAt, &j.FinishedAt, &j.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	j.Type = domain.JobType(typ)
	j.State = domain.JobState(state)
	return &j, nil
}

func scanProject(row pgx.Row) (*domain.Project, error) {
	var p domain.Project
	var plan, status string
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Slug, &plan, &status,
		&p.GitHubRepoID, &p.VercelProjectID, &p.PrimaryURL, &p.PendingDomain,
		&p.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	p.Plan = domain.Plan(plan)
	p.Status = domain.ProjectStatus(status)
	return &p, nil
}

func scanDomain(row pgx.Row) (*domain.DomainRecord, error) {
	var d domain.DomainRecord
	var status string
	if err := row.Scan(&d.ID, &d.ProjectID, &d.DomainName, &d.Registrar, &status,
		&d.PurchasePriceCents, &d.RenewalPriceCents, &d.RenewalDate); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	d.Status = domain.DomainStatus(status)
	return &d, nil
}
