package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"hostforge/internal/domain"
	"hostforge/internal/store"
)

// manifestPath is the marker file committed to every tenant repository. It
// records which template and plan the repo was provisioned from.
const manifestPath = ".hostforge/manifest.json"

func repoNameFor(p *domain.Project) string {
	return "project-" + p.Slug
}

// stepReserveSlug checks global slug uniqueness. Non-retryable: a conflict
// cannot resolve itself, and retrying burns the budget before the descriptive
// failure surfaces.
func (e *Engine) stepReserveSlug(ctx context.Context, jc *Context) error {
	project, err := jc.project(ctx)
	if err != nil {
		return err
	}

	existing, err := e.store.GetProjectBySlug(ctx, project.Slug)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// free
	case err != nil:
		return fmt.Errorf("check slug %q: %w", project.Slug, err)
	case existing.ID != jc.ProjectID:
		return fmt.Errorf("%w: %q", domain.ErrSlugTaken, project.Slug)
	}

	jc.Log(ctx, domain.LogLevelInfo, "Slug %q reserved", project.Slug)
	return nil
}

func (e *Engine) stepCreateRepo(ctx context.Context, jc *Context) error {
	project, err := jc.project(ctx)
	if err != nil {
		return err
	}
	if project.GitHubRepoID != "" {
		jc.Log(ctx, domain.LogLevelInfo, "Repository already recorded: %s", project.GitHubRepoID)
		return nil
	}

	repoName := repoNameFor(project)
	jc.Log(ctx, domain.LogLevelInfo, "Creating repository %s", repoName)

	exists, err := e.source.RepoExists(ctx, repoName)
	if err != nil {
		return fmt.Errorf("check repository %s: %w", repoName, err)
	}

	var fullName string
	if exists {
		// A prior partial run created the repo but lost the reference.
		fullName = e.source.FullName(repoName)
	} else {
		fullName, err = e.source.CreateRepo(ctx, repoName)
		if err != nil {
			return fmt.Errorf("create repository %s: %w", repoName, err)
		}
	}

	if err := e.store.PatchProject(ctx, jc.ProjectID, store.ProjectPatch{GitHubRepoID: &fullName}); err != nil {
		return fmt.Errorf("record repository %s: %w", fullName, err)
	}
	jc.Log(ctx, domain.LogLevelInfo, "Repository recorded: %s", fullName)
	return nil
}

func (e *Engine) stepPushTemplate(ctx context.Context, jc *Context) error {
	project, err := jc.project(ctx)
	if err != nil {
		return err
	}
	if project.GitHubRepoID == "" {
		return fmt.Errorf("repository not created yet for project %s", project.Slug)
	}

	template := e.plans.Template(project.Plan)
	jc.Log(ctx, domain.LogLevelInfo, "Pushing template %q to %s", template, project.GitHubRepoID)

	manifest, err := json.Marshal(map[string]string{
		"template": template,
		"plan":     string(project.Plan),
		"slug":     project.Slug,
	})
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := e.source.UploadFile(ctx, repoNameFor(project), manifestPath, manifest,
		"Provision from "+template); err != nil {
		return fmt.Errorf("push template manifest: %w", err)
	}

	jc.Log(ctx, domain.LogLevelInfo, "Template push complete")
	return nil
}

func (e *Engine) stepApplyModules(ctx context.Context, jc *Context) error {
	project, err := jc.project(ctx)
	if err != nil {
		return err
	}
	if project.GitHubRepoID == "" {
		return fmt.Errorf("repository not created yet for project %s", project.Slug)
	}

	patches := e.plans.Patches(project.Plan)
	jc.Log(ctx, domain.LogLevelInfo, "Applying module patches for plan %q", project.Plan)

	repoName := repoNameFor(project)
	for _, path := range patches {
		content := renderModulePatch(project, path)
		if err := e.source.UploadFile(ctx, repoName, path, content,
			fmt.Sprintf("Apply %s module patch: %s", project.Plan, path)); err != nil {
			return fmt.Errorf("apply patch %s: %w", path, err)
		}
	}

	jc.Log(ctx, domain.LogLevelInfo, "Applied %d patches for plan %s", len(patches), project.Plan)
	return nil
}

// renderModulePatch produces deterministic patch content, so re-applying a
// patch after a partial run writes identical bytes.
func renderModulePatch(p *domain.Project, path string) []byte {
	switch path {
	case "package.json":
		data, _ := json.MarshalIndent(map[string]any{
			"name":    p.Slug,
			"private": true,
			"hostforge": map[string]string{
				"plan": string(p.Plan),
			},
		}, "", "  ")
		return append(data, '\n')
	case "README.md":
		return []byte(fmt.Sprintf("# %s\n\nProvisioned on the %s plan.\n", p.Name, p.Plan))
	default:
		return []byte(fmt.Sprintf("// Generated for %s (%s plan). Managed by the provisioner.\n", p.Slug, p.Plan))
	}
}

func (e *Engine) stepCommitChanges(ctx context.Context, jc *Context) error {
	project, err := jc.project(ctx)
	if err != nil {
		return err
	}
	if project.GitHubRepoID == "" {
		return fmt.Errorf("repository not created yet for project %s", project.Slug)
	}

	jc.Log(ctx, domain.LogLevelInfo, "Committing template and module changes for project %s", project.Slug)

	// Uploads commit individually; this confirms the branch head exists so
	// downstream CI steps have a ref to report against.
	sha, err := e.source.BranchSHA(ctx, repoNameFor(project), "main")
	if err != nil {
		return fmt.Errorf("resolve branch head: %w", err)
	}

	jc.Log(ctx, domain.LogLevelInfo, "Changes committed as %s", sha)
	return nil
}
