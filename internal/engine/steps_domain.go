package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hostforge/internal/domain"
	"hostforge/internal/store"
)

func (e *Engine) stepPurchaseDomain(ctx context.Context, jc *Context) error {
	project, err := jc.project(ctx)
	if err != nil {
		return err
	}
	if project.PendingDomain == "" {
		return fmt.Errorf("project %s has no pending domain to attach", project.Slug)
	}
	name := project.PendingDomain

	existing, err := e.store.GetDomainByName(ctx, name)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("check domain %s: %w", name, err)
	}
	if existing != nil && existing.Status != domain.DomainStatusFailed {
		jc.Log(ctx, domain.LogLevelInfo, "Domain %s already purchased, skipping", name)
		return nil
	}

	price, err := e.registrar.PriceCents(ctx, name)
	if err != nil {
		return fmt.Errorf("price domain %s: %w", name, err)
	}
	jc.Log(ctx, domain.LogLevelInfo, "Purchasing domain %s for %d cents", name, price)

	if err := e.registrar.Purchase(ctx, name, 1); err != nil {
		return fmt.Errorf("purchase domain %s: %w", name, err)
	}

	renewal := time.Now().UTC().AddDate(1, 0, 0)
	record := &domain.DomainRecord{
		ID:                 uuid.NewString(),
		ProjectID:          jc.ProjectID,
		DomainName:         name,
		Registrar:          "namecheap",
		Status:             domain.DomainStatusPurchased,
		PurchasePriceCents: price,
		RenewalPriceCents:  price,
		RenewalDate:        &renewal,
	}
	if err := e.store.UpsertDomain(ctx, record); err != nil {
		return fmt.Errorf("record domain %s: %w", name, err)
	}

	jc.Log(ctx, domain.LogLevelInfo, "Domain %s purchased, renews %s", name, renewal.Format("2006-01-02"))
	return nil
}

func (e *Engine) stepConfigureDNS(ctx context.Context, jc *Context) error {
	project, err := jc.project(ctx)
	if err != nil {
		return err
	}
	if project.PendingDomain == "" {
		return fmt.Errorf("project %s has no pending domain to attach", project.Slug)
	}
	name := project.PendingDomain

	jc.Log(ctx, domain.LogLevelInfo, "Pointing DNS for %s at the hosting platform", name)
	if err := e.registrar.PointDNSToHosting(ctx, name); err != nil {
		return fmt.Errorf("configure dns for %s: %w", name, err)
	}

	if err := e.store.UpdateDomainStatus(ctx, name, domain.DomainStatusConfiguring); err != nil {
		return fmt.Errorf("mark domain %s configuring: %w", name, err)
	}
	jc.Log(ctx, domain.LogLevelInfo, "DNS configured for %s", name)
	return nil
}

func (e *Engine) stepAddDomainToHosting(ctx context.Context, jc *Context) error {
	project, err := jc.project(ctx)
	if err != nil {
		return err
	}
	if project.VercelProjectID == "" {
		return fmt.Errorf("hosting project not created yet for project %s", project.Slug)
	}
	if project.PendingDomain == "" {
		return fmt.Errorf("project %s has no pending domain to attach", project.Slug)
	}
	name := project.PendingDomain

	jc.Log(ctx, domain.LogLevelInfo, "Binding domain %s to hosting project %s", name, project.VercelProjectID)
	if err := e.hosting.AddDomain(ctx, project.VercelProjectID, name); err != nil {
		return fmt.Errorf("bind domain %s: %w", name, err)
	}

	if err := e.store.UpdateDomainStatus(ctx, name, domain.DomainStatusVerifying); err != nil {
		return fmt.Errorf("mark domain %s verifying: %w", name, err)
	}
	return nil
}

// stepWaitDomainVerified polls the hosting platform until it reports the
// domain's DNS as verified. DNS propagation is slow, so the budget is long.
func (e *Engine) stepWaitDomainVerified(ctx context.Context, jc *Context) error {
	project, err := jc.project(ctx)
	if err != nil {
		return err
	}
	if project.VercelProjectID == "" {
		return fmt.Errorf("hosting project not created yet for project %s", project.Slug)
	}
	name := project.PendingDomain
	if name == "" {
		return fmt.Errorf("project %s has no pending domain to attach", project.Slug)
	}

	jc.Log(ctx, domain.LogLevelInfo, "Waiting for DNS verification of %s", name)
	start := time.Now()
	deadline := start.Add(e.timing.DomainTimeout)
	for time.Now().Before(deadline) {
		verified, err := e.hosting.DomainVerified(ctx, project.VercelProjectID, name)
		if err != nil {
			e.logger.Warn().Err(err).Str("domain", name).Msg("domain verification check failed")
		} else if verified {
			if err := e.store.UpdateDomainStatus(ctx, name, domain.DomainStatusActive); err != nil {
				return fmt.Errorf("mark domain %s active: %w", name, err)
			}
			jc.Log(ctx, domain.LogLevelInfo, "Domain %s verified and active", name)
			return nil
		}

		if err := e.sleep(ctx, e.timing.DomainPollInterval); err != nil {
			return err
		}
		jc.Log(ctx, domain.LogLevelInfo, "Domain %s not verified yet... (%ds elapsed)", name, int(time.Since(start).Seconds()))
	}

	return fmt.Errorf("domain %s was not verified within %s", name, e.timing.DomainTimeout)
}

func (e *Engine) stepUpdatePrimaryURL(ctx context.Context, jc *Context) error {
	project, err := jc.project(ctx)
	if err != nil {
		return err
	}
	if project.PendingDomain == "" {
		return fmt.Errorf("project %s has no pending domain to attach", project.Slug)
	}

	primary := "https://" + project.PendingDomain
	cleared := ""
	patch := store.ProjectPatch{PrimaryURL: &primary, PendingDomain: &cleared}
	if err := e.store.PatchProject(ctx, jc.ProjectID, patch); err != nil {
		return fmt.Errorf("update primary url: %w", err)
	}

	jc.Log(ctx, domain.LogLevelInfo, "Primary URL is now %s", primary)
	return nil
}
