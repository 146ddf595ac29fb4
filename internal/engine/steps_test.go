package engine

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"hostforge/internal/domain"
)

func stepContext(e *Engine) *Context {
	return &Context{JobID: "job-1", ProjectID: "proj-1", JobType: domain.JobTypeCreate, engine: e}
}

func TestReserveSlugConflict(t *testing.T) {
	other := &domain.Project{ID: "proj-2", Slug: "acme", Plan: domain.PlanWebsite}
	st := newFakeStore(testProject(), other)
	e, _, _, _ := testEngine(st)

	err := e.stepReserveSlug(context.Background(), stepContext(e))
	if !errors.Is(err, domain.ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken, got %v", err)
	}
}

func TestReserveSlugOwnProjectIsFree(t *testing.T) {
	st := newFakeStore(testProject())
	e, _, _, _ := testEngine(st)

	if err := e.stepReserveSlug(context.Background(), stepContext(e)); err != nil {
		t.Fatalf("stepReserveSlug: %v", err)
	}
	if !st.hasLog(`Slug "acme" reserved`) {
		t.Error("missing reservation log")
	}
}

func TestCreateRepoSkipsWhenRecorded(t *testing.T) {
	p := testProject()
	p.GitHubRepoID = "hostforge/project-acme"
	st := newFakeStore(p)
	e, source, _, _ := testEngine(st)

	if err := e.stepCreateRepo(context.Background(), stepContext(e)); err != nil {
		t.Fatalf("stepCreateRepo: %v", err)
	}
	if source.dispatch != nil || source.uploads != nil {
		t.Error("expected no source host calls")
	}
	if !st.hasLog("Repository already recorded") {
		t.Error("missing skip log")
	}
}

func TestCreateRepoAdoptsExistingRepo(t *testing.T) {
	st := newFakeStore(testProject())
	e, source, _, _ := testEngine(st)
	source.exists = true

	if err := e.stepCreateRepo(context.Background(), stepContext(e)); err != nil {
		t.Fatalf("stepCreateRepo: %v", err)
	}
	if got := st.projects["proj-1"].GitHubRepoID; got != "hostforge/project-acme" {
		t.Fatalf("repo = %q", got)
	}
}

func TestApplyModulesUploadsPlanPatches(t *testing.T) {
	p := testProject()
	p.Plan = domain.PlanAI
	p.GitHubRepoID = "hostforge/project-acme"
	st := newFakeStore(p)
	e, source, _, _ := testEngine(st)

	if err := e.stepApplyModules(context.Background(), stepContext(e)); err != nil {
		t.Fatalf("stepApplyModules: %v", err)
	}
	if len(source.uploads) == 0 {
		t.Fatal("no patches uploaded")
	}
	if source.uploads[0] != "package.json" {
		t.Errorf("first patch = %q, want package.json", source.uploads[0])
	}
}

func TestRenderModulePatchIsDeterministic(t *testing.T) {
	p := testProject()
	a := renderModulePatch(p, "package.json")
	b := renderModulePatch(p, "package.json")
	if string(a) != string(b) {
		t.Fatal("patch content differs between renders")
	}
	if !strings.Contains(string(a), `"name": "acme"`) {
		t.Errorf("unexpected package.json content: %s", a)
	}
}

func TestDeployRequiresHostingProject(t *testing.T) {
	st := newFakeStore(testProject())
	e, _, _, _ := testEngine(st)

	err := e.stepDeploy(context.Background(), stepContext(e))
	if err == nil || !strings.Contains(err.Error(), "not created yet") {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestDeployFailsOnTerminalState(t *testing.T) {
	p := testProject()
	p.VercelProjectID = "prj_1"
	st := newFakeStore(p)
	e, _, hosting, _ := testEngine(st)
	hosting.deployStates = []DeployState{DeployStateBuilding, DeployStateError}

	err := e.stepDeploy(context.Background(), stepContext(e))
	if err == nil || !strings.Contains(err.Error(), "deployment ended with state: ERROR") {
		t.Fatalf("expected terminal state error, got %v", err)
	}
}

func TestDeployRecordsPrimaryURL(t *testing.T) {
	p := testProject()
	p.VercelProjectID = "prj_1"
	st := newFakeStore(p)
	e, _, hosting, _ := testEngine(st)
	hosting.deployStates = []DeployState{DeployStateBuilding, DeployStateReady}
	hosting.deployURL = "acme-xyz.vercel.app"

	if err := e.stepDeploy(context.Background(), stepContext(e)); err != nil {
		t.Fatalf("stepDeploy: %v", err)
	}
	if got := st.projects["proj-1"].PrimaryURL; got != "https://acme-xyz.vercel.app" {
		t.Fatalf("primary url = %q", got)
	}
}

func TestVerifyLiveAcceptsAuthStatuses(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusUnauthorized, http.StatusForbidden} {
		p := testProject()
		p.PrimaryURL = "https://acme.hostforge.app"
		st := newFakeStore(p)
		e, _, _, _ := testEngine(st, func(o *Options) {
			o.HTTPClient = probeClient(status)
		})

		if err := e.stepVerifyLive(context.Background(), stepContext(e)); err != nil {
			t.Errorf("status %d: %v", status, err)
		}
	}
}

func TestVerifyLiveTimesOutOnServerErrors(t *testing.T) {
	p := testProject()
	p.PrimaryURL = "https://acme.hostforge.app"
	st := newFakeStore(p)
	e, _, _, _ := testEngine(st, func(o *Options) {
		o.HTTPClient = probeClient(http.StatusBadGateway)
	})

	err := e.stepVerifyLive(context.Background(), stepContext(e))
	if err == nil || !strings.Contains(err.Error(), "did not become live") {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestPurchaseDomainSkipsExistingPurchase(t *testing.T) {
	p := testProject()
	p.PendingDomain = "acme.com"
	st := newFakeStore(p)
	st.domains["acme.com"] = &domain.DomainRecord{
		DomainName: "acme.com",
		Status:     domain.DomainStatusPurchased,
	}
	e, _, _, registrar := testEngine(st)

	if err := e.stepPurchaseDomain(context.Background(), stepContext(e)); err != nil {
		t.Fatalf("stepPurchaseDomain: %v", err)
	}
	if len(registrar.purchased) != 0 {
		t.Fatalf("expected no purchase, got %v", registrar.purchased)
	}
	if !st.hasLog("already purchased") {
		t.Error("missing skip log")
	}
}

func TestPurchaseDomainRetriesAfterFailedRecord(t *testing.T) {
	p := testProject()
	p.PendingDomain = "acme.com"
	st := newFakeStore(p)
	st.domains["acme.com"] = &domain.DomainRecord{
		DomainName: "acme.com",
		Status:     domain.DomainStatusFailed,
	}
	e, _, _, registrar := testEngine(st)

	if err := e.stepPurchaseDomain(context.Background(), stepContext(e)); err != nil {
		t.Fatalf("stepPurchaseDomain: %v", err)
	}
	if len(registrar.purchased) != 1 {
		t.Fatalf("expected one purchase, got %v", registrar.purchased)
	}
	rec := st.domains["acme.com"]
	if rec.Status != domain.DomainStatusPurchased {
		t.Errorf("status = %q", rec.Status)
	}
	if rec.PurchasePriceCents != 1560 {
		t.Errorf("price = %d", rec.PurchasePriceCents)
	}
	if rec.RenewalDate == nil {
		t.Error("renewal date not set")
	}
}

func TestAttachDomainFlow(t *testing.T) {
	p := testProject()
	p.VercelProjectID = "prj_1"
	p.PendingDomain = "acme.com"
	st := newFakeStore(p)
	e, _, hosting, registrar := testEngine(st)
	hosting.verified = true

	if err := e.RunJob(context.Background(), "job-1", domain.JobTypeAttachDomain, "proj-1"); err != nil {
		t.Fatalf("RunJob: %v", err)
	}

	if len(registrar.purchased) != 1 || registrar.purchased[0] != "acme.com" {
		t.Errorf("purchased = %v", registrar.purchased)
	}
	if len(registrar.pointed) != 1 {
		t.Errorf("dns pointed = %v", registrar.pointed)
	}
	if len(hosting.addedDomains) != 1 || hosting.addedDomains[0] != "acme.com" {
		t.Errorf("added domains = %v", hosting.addedDomains)
	}
	if st.domains["acme.com"].Status != domain.DomainStatusActive {
		t.Errorf("domain status = %q", st.domains["acme.com"].Status)
	}

	got := st.projects["proj-1"]
	if got.PrimaryURL != "https://acme.com" {
		t.Errorf("primary url = %q", got.PrimaryURL)
	}
	if got.PendingDomain != "" {
		t.Errorf("pending domain not cleared: %q", got.PendingDomain)
	}
}

func TestAttachDomainFailureMarksDomainFailed(t *testing.T) {
	p := testProject()
	p.VercelProjectID = "prj_1"
	p.PendingDomain = "acme.com"
	st := newFakeStore(p)
	e, _, _, _ := testEngine(st)
	// DNS verification never succeeds, so the job fails mid-flight

	err := e.RunJob(context.Background(), "job-1", domain.JobTypeAttachDomain, "proj-1")
	if err == nil {
		t.Fatal("expected job failure")
	}

	rec := st.domains["acme.com"]
	if rec == nil || rec.Status != domain.DomainStatusFailed {
		t.Fatalf("domain record = %+v, want failed status", rec)
	}
}

func TestWaitDomainVerifiedRequiresHostingProject(t *testing.T) {
	p := testProject()
	p.PendingDomain = "acme.com"
	st := newFakeStore(p)
	e, _, hosting, _ := testEngine(st)

	err := e.stepWaitDomainVerified(context.Background(), stepContext(e))
	if err == nil || !strings.Contains(err.Error(), "not created yet") {
		t.Fatalf("err = %v, want hosting precondition failure", err)
	}
	if hosting.verifyCalls != 0 {
		t.Errorf("verify calls = %d, want 0", hosting.verifyCalls)
	}
}

func TestWaitDomainVerifiedTimesOut(t *testing.T) {
	p := testProject()
	p.VercelProjectID = "prj_1"
	p.PendingDomain = "acme.com"
	st := newFakeStore(p)
	e, _, _, _ := testEngine(st)

	err := e.stepWaitDomainVerified(context.Background(), stepContext(e))
	if err == nil || !strings.Contains(err.Error(), "was not verified within") {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestReleaseRemovesDomainsAndSuspends(t *testing.T) {
	p := testProject()
	p.VercelProjectID = "prj_1"
	p.PrimaryURL = "https://acme.com"
	st := newFakeStore(p)
	e, _, hosting, _ := testEngine(st)

	if err := e.RunJob(context.Background(), "job-1", domain.JobTypeRelease, "proj-1"); err != nil {
		t.Fatalf("RunJob: %v", err)
	}

	want := []string{"acme.hostforge.app", "acme.com"}
	if len(hosting.removedDomains) != len(want) {
		t.Fatalf("removed = %v, want %v", hosting.removedDomains, want)
	}
	for i := range want {
		if hosting.removedDomains[i] != want[i] {
			t.Errorf("removed[%d] = %q, want %q", i, hosting.removedDomains[i], want[i])
		}
	}
	if st.projects["proj-1"].Status != domain.ProjectStatusSuspended {
		t.Errorf("status = %q, want suspended", st.projects["proj-1"].Status)
	}
}

func TestReleaseToleratesMissingHostingProject(t *testing.T) {
	st := newFakeStore(testProject())
	e, _, hosting, _ := testEngine(st)

	if err := e.RunJob(context.Background(), "job-1", domain.JobTypeRelease, "proj-1"); err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if hosting.removedDomains != nil {
		t.Errorf("unexpected domain removals: %v", hosting.removedDomains)
	}
}

func TestWaitCIFailsOnFailureState(t *testing.T) {
	p := testProject()
	p.GitHubRepoID = "hostforge/project-acme"
	st := newFakeStore(p)
	e, source, _, _ := testEngine(st)
	source.ciStates = []CIStatus{CIStatusPending, CIStatusFailure}

	err := e.stepWaitCI(context.Background(), stepContext(e))
	if err == nil || !strings.Contains(err.Error(), "ci failed with state: failure") {
		t.Fatalf("expected ci failure, got %v", err)
	}
}

func TestWaitCISucceedsAfterPending(t *testing.T) {
	p := testProject()
	p.GitHubRepoID = "hostforge/project-acme"
	st := newFakeStore(p)
	e, source, _, _ := testEngine(st)
	source.ciStates = []CIStatus{CIStatusPending, CIStatusPending, CIStatusSuccess}

	if err := e.stepWaitCI(context.Background(), stepContext(e)); err != nil {
		t.Fatalf("stepWaitCI: %v", err)
	}
	if !st.hasLog("CI passed") {
		t.Error("missing CI passed log")
	}
}
