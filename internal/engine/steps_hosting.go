package engine

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hostforge/internal/domain"
	"hostforge/internal/store"
)

func hostingNameFor(p *domain.Project) string {
	return "hostforge-" + p.Slug
}

func (e *Engine) stepCreateHostingProject(ctx context.Context, jc *Context) error {
	project, err := jc.project(ctx)
	if err != nil {
		return err
	}
	if project.VercelProjectID != "" {
		jc.Log(ctx, domain.LogLevelInfo, "Hosting project already exists: %s", project.VercelProjectID)
		return nil
	}

	name := hostingNameFor(project)
	jc.Log(ctx, domain.LogLevelInfo, "Creating hosting project %s", name)

	hosted, err := e.hosting.GetProject(ctx, name)
	if err != nil {
		return fmt.Errorf("check hosting project %s: %w", name, err)
	}
	if hosted == nil {
		hosted, err = e.hosting.CreateProject(ctx, name, project.GitHubRepoID)
		if err != nil {
			return fmt.Errorf("create hosting project %s: %w", name, err)
		}
	}

	if err := e.store.PatchProject(ctx, jc.ProjectID, store.ProjectPatch{VercelProjectID: &hosted.ID}); err != nil {
		return fmt.Errorf("record hosting project %s: %w", hosted.ID, err)
	}
	jc.Log(ctx, domain.LogLevelInfo, "Hosting project created: %s (%s)", hosted.Name, hosted.ID)
	return nil
}

func (e *Engine) stepSetEnvVars(ctx context.Context, jc *Context) error {
	project, err := jc.project(ctx)
	if err != nil {
		return err
	}
	if project.VercelProjectID == "" {
		return fmt.Errorf("hosting project not created yet for project %s", project.Slug)
	}

	allTargets := []string{"production", "preview", "development"}
	vars := []EnvVar{
		{Key: "NEXT_PUBLIC_PROJECT_SLUG", Value: project.Slug, Target: allTargets},
		{Key: "NEXT_PUBLIC_PLAN", Value: string(project.Plan), Target: allTargets},
	}

	jc.Log(ctx, domain.LogLevelInfo, "Setting %d env vars on hosting project %s", len(vars), project.VercelProjectID)
	if err := e.hosting.SetEnvVars(ctx, project.VercelProjectID, vars); err != nil {
		return fmt.Errorf("set env vars: %w", err)
	}

	jc.Log(ctx, domain.LogLevelInfo, "Env vars set successfully")
	return nil
}

// stepDeploy triggers a deployment and polls readiness until READY, a
// terminal error state, or the deploy timeout. Non-retryable: re-running
// would double-trigger a build the platform already tracks.
func (e *Engine) stepDeploy(ctx context.Context, jc *Context) error {
	project, err := jc.project(ctx)
	if err != nil {
		return err
	}
	if project.VercelProjectID == "" {
		return fmt.Errorf("hosting project not created yet for project %s", project.Slug)
	}

	jc.Log(ctx, domain.LogLevelInfo, "Triggering deployment for hosting project %s", project.VercelProjectID)
	deployment, err := e.hosting.TriggerDeploy(ctx, project.VercelProjectID)
	if err != nil {
		return fmt.Errorf("trigger deployment: %w", err)
	}
	jc.Log(ctx, domain.LogLevelInfo, "Deployment started: %s", deployment.ID)

	deadline := time.Now().Add(e.timing.DeployTimeout)
	for time.Now().Before(deadline) {
		if err := e.sleep(ctx, e.timing.DeployPollInterval); err != nil {
			return err
		}

		current, err := e.hosting.GetDeployment(ctx, deployment.ID)
		if err != nil {
			// Transient status failures ride out the poll budget.
			continue
		}
		jc.Log(ctx, domain.LogLevelInfo, "Deployment status: %s", current.State)

		switch current.State {
		case DeployStateReady:
			url := current.URL
			if url == "" {
				url = project.Slug + ".vercel.app"
			}
			primary := "https://" + url
			if err := e.store.PatchProject(ctx, jc.ProjectID, store.ProjectPatch{PrimaryURL: &primary}); err != nil {
				return fmt.Errorf("record primary url: %w", err)
			}
			jc.Log(ctx, domain.LogLevelInfo, "Deployment ready: %s", primary)
			return nil
		case DeployStateError, DeployStateCanceled:
			return fmt.Errorf("deployment ended with state: %s", current.State)
		}
	}

	return fmt.Errorf("deployment timed out after %s", e.timing.DeployTimeout)
}

func (e *Engine) stepAssignSlugDomain(ctx context.Context, jc *Context) error {
	project, err := jc.project(ctx)
	if err != nil {
		return err
	}
	if project.VercelProjectID == "" {
		return fmt.Errorf("hosting project not created yet for project %s", project.Slug)
	}

	subdomain := project.Slug + "." + e.platformDomain
	jc.Log(ctx, domain.LogLevelInfo, "Assigning subdomain %s to hosting project", subdomain)

	// AddDomain treats an already-bound domain as success.
	if err := e.hosting.AddDomain(ctx, project.VercelProjectID, subdomain); err != nil {
		return fmt.Errorf("assign subdomain %s: %w", subdomain, err)
	}

	jc.Log(ctx, domain.LogLevelInfo, "Subdomain %s assigned", subdomain)
	return nil
}

// stepVerifyLive probes the public URL until it answers. 401/403 count as
// live: an authenticated app may legitimately reject anonymous probes.
func (e *Engine) stepVerifyLive(ctx context.Context, jc *Context) error {
	project, err := jc.project(ctx)
	if err != nil {
		return err
	}

	url := project.PrimaryURL
	if url == "" {
		url = "https://" + project.Slug + "." + e.platformDomain
	}
	jc.Log(ctx, domain.LogLevelInfo, "Verifying site is live at %s", url)

	deadline := time.Now().Add(e.timing.VerifyTimeout)
	for time.Now().Before(deadline) {
		status, err := e.probe(ctx, url)
		switch {
		case err != nil:
			jc.Log(ctx, domain.LogLevelInfo, "Site not reachable yet, retrying...")
		case status >= 200 && status < 300, status == http.StatusUnauthorized, status == http.StatusForbidden:
			jc.Log(ctx, domain.LogLevelInfo, "Site is live at %s (status %d)", url, status)
			return nil
		default:
			jc.Log(ctx, domain.LogLevelInfo, "Site not ready yet (status %d), retrying...", status)
		}

		if err := e.sleep(ctx, e.timing.VerifyPollInterval); err != nil {
			return err
		}
	}

	return fmt.Errorf("site did not become live within timeout: %s", url)
}

func (e *Engine) probe(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func (e *Engine) stepMarkLive(ctx context.Context, jc *Context) error {
	project, err := jc.project(ctx)
	if err != nil {
		return err
	}

	if err := e.store.UpdateProjectStatus(ctx, jc.ProjectID, domain.ProjectStatusLive); err != nil {
		return fmt.Errorf("mark project live: %w", err)
	}

	jc.Log(ctx, domain.LogLevelInfo, "Project %s is now live", project.Slug)
	return nil
}

// hostFromURL strips the scheme and path from a primary URL.
func hostFromURL(url string) string {
	host := strings.TrimPrefix(strings.TrimPrefix(url, "https://"), "http://")
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	return host
}
