package engine

import (
	"context"
	"fmt"
	"time"

	"hostforge/internal/domain"
)

// ciDispatchEvent is the repository dispatch event type that kicks off the
// provisioning CI workflow.
const ciDispatchEvent = "provision-ci"

func (e *Engine) stepTriggerCI(ctx context.Context, jc *Context) error {
	project, err := jc.project(ctx)
	if err != nil {
		return err
	}
	if project.GitHubRepoID == "" {
		return fmt.Errorf("repository not created yet for project %s", project.Slug)
	}

	jc.Log(ctx, domain.LogLevelInfo, "Triggering CI for repo %s", project.GitHubRepoID)
	if err := e.source.DispatchEvent(ctx, repoNameFor(project), ciDispatchEvent); err != nil {
		return fmt.Errorf("dispatch CI event: %w", err)
	}

	jc.Log(ctx, domain.LogLevelInfo, "CI trigger dispatched")
	return nil
}

// stepWaitCI polls the commit status of the branch head until a terminal
// state or the CI timeout. Non-retryable: the poll already encodes pass/fail,
// and its internal timeout dwarfs the retry backoff.
func (e *Engine) stepWaitCI(ctx context.Context, jc *Context) error {
	project, err := jc.project(ctx)
	if err != nil {
		return err
	}
	if project.GitHubRepoID == "" {
		return fmt.Errorf("repository not created yet for project %s", project.Slug)
	}

	repoName := repoNameFor(project)
	sha, err := e.source.BranchSHA(ctx, repoName, "main")
	if err != nil {
		return fmt.Errorf("resolve branch head: %w", err)
	}

	jc.Log(ctx, domain.LogLevelInfo, "Waiting for CI to pass for %s@%s", project.GitHubRepoID, sha)

	start := time.Now()
	deadline := start.Add(e.timing.CITimeout)
	for time.Now().Before(deadline) {
		status, err := e.source.CommitStatus(ctx, repoName, sha)
		if err != nil {
			// Transient status-endpoint failures get absorbed by the poll.
			jc.Log(ctx, domain.LogLevelWarn, "CI status check failed: %v", err)
		} else {
			switch status {
			case CIStatusSuccess:
				jc.Log(ctx, domain.LogLevelInfo, "CI passed")
				return nil
			case CIStatusFailure, CIStatusError:
				return fmt.Errorf("ci failed with state: %s", status)
			}
		}

		if err := e.sleep(ctx, e.timing.CIPollInterval); err != nil {
			return err
		}
		jc.Log(ctx, domain.LogLevelInfo, "CI still running... (%ds elapsed)", int(time.Since(start).Seconds()))
	}

	return fmt.Errorf("ci timed out after %s", e.timing.CITimeout)
}
