package engine

import (
	"context"
	"fmt"
	"time"

	"hostforge/internal/domain"
	"hostforge/internal/store"
)

// StepFunc is one discrete provisioning action. Steps read current project
// state, perform one external effect, and persist new references on success.
type StepFunc func(ctx context.Context, jc *Context) error

// Step pairs a step function with its name and retry policy. Step lists are
// static configuration, never mutated at runtime.
type Step struct {
	Name      string
	Fn        StepFunc
	Retryable bool
}

// Steps returns the ordered step list for a job type. Unrecognized types are
// rejected rather than defaulting to the creation list.
func (e *Engine) Steps(jobType domain.JobType) ([]Step, error) {
	switch jobType {
	case domain.JobTypeCreate:
		return []Step{
			{Name: "reserve_slug", Fn: e.stepReserveSlug, Retryable: false},
			{Name: "create_github_repo", Fn: e.stepCreateRepo, Retryable: true},
			{Name: "push_template", Fn: e.stepPushTemplate, Retryable: true},
			{Name: "apply_modules", Fn: e.stepApplyModules, Retryable: true},
			{Name: "commit_changes", Fn: e.stepCommitChanges, Retryable: true},
			{Name: "trigger_ci", Fn: e.stepTriggerCI, Retryable: true},
			{Name: "wait_ci", Fn: e.stepWaitCI, Retryable: false},
			{Name: "create_vercel_project", Fn: e.stepCreateHostingProject, Retryable: true},
			{Name: "set_env_vars", Fn: e.stepSetEnvVars, Retryable: true},
			{Name: "deploy", Fn: e.stepDeploy, Retryable: false},
			{Name: "assign_slug_domain", Fn: e.stepAssignSlugDomain, Retryable: true},
			{Name: "verify_live", Fn: e.stepVerifyLive, Retryable: false},
			{Name: "mark_live", Fn: e.stepMarkLive, Retryable: true},
		}, nil
	case domain.JobTypeRedeploy:
		return []Step{
			{Name: "deploy", Fn: e.stepDeploy, Retryable: false},
			{Name: "verify_live", Fn: e.stepVerifyLive, Retryable: false},
			{Name: "mark_live", Fn: e.stepMarkLive, Retryable: true},
		}, nil
	case domain.JobTypeUpgrade:
		return []Step{
			{Name: "apply_modules", Fn: e.stepApplyModules, Retryable: true},
			{Name: "commit_changes", Fn: e.stepCommitChanges, Retryable: true},
			{Name: "trigger_ci", Fn: e.stepTriggerCI, Retryable: true},
			{Name: "wait_ci", Fn: e.stepWaitCI, Retryable: false},
			{Name: "deploy", Fn: e.stepDeploy, Retryable: false},
			{Name: "verify_live", Fn: e.stepVerifyLive, Retryable: false},
			{Name: "mark_live", Fn: e.stepMarkLive, Retryable: true},
		}, nil
	case domain.JobTypeAttachDomain:
		return []Step{
			{Name: "purchase_domain", Fn: e.stepPurchaseDomain, Retryable: true},
			{Name: "configure_dns", Fn: e.stepConfigureDNS, Retryable: true},
			{Name: "add_domain_to_hosting", Fn: e.stepAddDomainToHosting, Retryable: true},
			{Name: "wait_domain_verified", Fn: e.stepWaitDomainVerified, Retryable: false},
			{Name: "update_primary_url", Fn: e.stepUpdatePrimaryURL, Retryable: true},
		}, nil
	case domain.JobTypeRelease:
		return []Step{
			{Name: "remove_domains", Fn: e.stepRemoveDomains, Retryable: true},
			{Name: "mark_released", Fn: e.stepMarkReleased, Retryable: true},
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownJobType, jobType)
	}
}

// RunJob executes the full step sequence for a job: queued→running, each step
// through the retry harness in order, then a single terminal transition. The
// first unrecoverable step failure fails the job and is returned to the
// caller.
func (e *Engine) RunJob(ctx context.Context, jobID string, jobType domain.JobType, projectID string) error {
	steps, err := e.Steps(jobType)
	if err != nil {
		e.failJob(ctx, jobID, err)
		return err
	}

	if e.lock != nil {
		release, err := e.lock(ctx, projectID)
		if err != nil {
			err = fmt.Errorf("acquire project lock: %w", err)
			e.failJob(ctx, jobID, err)
			return err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				e.logger.Warn().Err(err).Str("project_id", projectID).Msg("engine: release project lock failed")
			}
		}()
	}

	jc := &Context{JobID: jobID, ProjectID: projectID, JobType: jobType, engine: e}

	running := domain.JobStateRunning
	if err := e.store.PatchJob(ctx, jobID, store.JobPatch{State: &running}); err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}

	for _, step := range steps {
		if err := e.runStep(ctx, jc, step); err != nil {
			jc.Log(ctx, domain.LogLevelError, "Job %s failed: %v", jobID, err)
			e.failJob(ctx, jobID, err)
			if jobType == domain.JobTypeAttachDomain {
				e.markPendingDomainFailed(ctx, jc)
			}
			return err
		}
	}

	done := domain.JobStateDone
	if err := e.store.PatchJob(ctx, jobID, store.JobPatch{State: &done}); err != nil {
		return fmt.Errorf("mark job done: %w", err)
	}
	jc.Log(ctx, domain.LogLevelInfo, "Job %s completed successfully", jobID)
	return nil
}

// markPendingDomainFailed flags the in-flight domain record after a failed
// attach_domain job, so a rerun takes the purchase path again instead of
// skipping on a half-configured record. A record that already went active is
// left alone.
func (e *Engine) markPendingDomainFailed(ctx context.Context, jc *Context) {
	project, err := e.store.GetProject(ctx, jc.ProjectID)
	if err != nil || project.PendingDomain == "" {
		return
	}
	rec, err := e.store.GetDomainByName(ctx, project.PendingDomain)
	if err != nil || rec.Status == domain.DomainStatusActive {
		return
	}
	if err := e.store.UpdateDomainStatus(ctx, project.PendingDomain, domain.DomainStatusFailed); err != nil {
		e.logger.Warn().Err(err).Str("domain", project.PendingDomain).Msg("engine: mark domain failed after job failure")
	}
}

func (e *Engine) failJob(ctx context.Context, jobID string, cause error) {
	failed := domain.JobStateFailed
	message := cause.Error()
	if err := e.store.PatchJob(ctx, jobID, store.JobPatch{State: &failed, Error: &message}); err != nil {
		e.logger.Error().Err(err).Str("job_id", jobID).Msg("engine: mark job failed failed")
	}
}

// runStep wraps one step with logging, the advisory step field update, and a
// bounded linear-backoff retry loop. Exactly one terminal log line is emitted
// per step, and the returned error is the last attempt's error.
func (e *Engine) runStep(ctx context.Context, jc *Context, step Step) error {
	attempts := 1
	if step.Retryable {
		attempts = e.timing.MaxRetries
	}

	jc.Log(ctx, domain.LogLevelInfo, "Starting step: %s", step.Name)
	running := domain.JobStateRunning
	name := step.Name
	if err := e.store.PatchJob(ctx, jc.JobID, store.JobPatch{State: &running, Step: &name}); err != nil {
		return fmt.Errorf("record step %s: %w", step.Name, err)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := step.Fn(ctx, jc)
		if err == nil {
			jc.Log(ctx, domain.LogLevelInfo, "Step completed: %s", step.Name)
			return nil
		}
		lastErr = err
		if attempt < attempts {
			jc.Log(ctx, domain.LogLevelWarn, "Step %s failed (attempt %d/%d): %v. Retrying...",
				step.Name, attempt, attempts, err)
			if err := e.sleep(ctx, e.timing.RetryDelay*time.Duration(attempt)); err != nil {
				lastErr = err
				break
			}
		}
	}

	jc.Log(ctx, domain.LogLevelError, "Step %s failed after %d attempt(s): %v", step.Name, attempts, lastErr)
	return lastErr
}

// sleep waits for d or until ctx is cancelled.
func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
