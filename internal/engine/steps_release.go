package engine

import (
	"context"
	"fmt"

	"hostforge/internal/domain"
)

// stepRemoveDomains unbinds the slug subdomain and any custom domain from the
// hosting project. Missing bindings are tolerated so release stays idempotent.
func (e *Engine) stepRemoveDomains(ctx context.Context, jc *Context) error {
	project, err := jc.project(ctx)
	if err != nil {
		return err
	}
	if project.VercelProjectID == "" {
		jc.Log(ctx, domain.LogLevelInfo, "No hosting project recorded, nothing to unbind")
		return nil
	}

	names := []string{project.Slug + "." + e.platformDomain}
	if project.PrimaryURL != "" {
		if host := hostFromURL(project.PrimaryURL); host != "" && host != names[0] {
			names = append(names, host)
		}
	}

	for _, name := range names {
		jc.Log(ctx, domain.LogLevelInfo, "Removing domain %s from hosting project", name)
		if err := e.hosting.RemoveDomain(ctx, project.VercelProjectID, name); err != nil {
			return fmt.Errorf("remove domain %s: %w", name, err)
		}
	}

	jc.Log(ctx, domain.LogLevelInfo, "Removed %d domain(s)", len(names))
	return nil
}

func (e *Engine) stepMarkReleased(ctx context.Context, jc *Context) error {
	project, err := jc.project(ctx)
	if err != nil {
		return err
	}

	if err := e.store.UpdateProjectStatus(ctx, jc.ProjectID, domain.ProjectStatusSuspended); err != nil {
		return fmt.Errorf("mark project released: %w", err)
	}

	jc.Log(ctx, domain.LogLevelInfo, "Project %s released and suspended", project.Slug)
	return nil
}
