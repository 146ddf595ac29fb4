package engine

import "context"

// CIStatus is the terminal/pending classification of a commit status check.
type CIStatus string

const (
	CIStatusPending CIStatus = "pending"
	CIStatusSuccess CIStatus = "success"
	CIStatusFailure CIStatus = "failure"
	CIStatusError   CIStatus = "error"
)

// SourceHost manages tenant source repositories.
type SourceHost interface {
	// FullName resolves a bare repository name to its org-qualified form.
	FullName(repoName string) string
	RepoExists(ctx context.Context, repoName string) (bool, error)
	CreateRepo(ctx context.Context, repoName string) (fullName string, err error)
	// UploadFile creates or overwrites one file on the default branch.
	// Re-uploading identical content is a no-op.
	UploadFile(ctx context.Context, repoName, path string, content []byte, message string) error
	BranchSHA(ctx context.Context, repoName, branch string) (string, error)
	CommitStatus(ctx context.Context, repoName, ref string) (CIStatus, error)
	DispatchEvent(ctx context.Context, repoName, eventType string) error
}

// DeployState mirrors the hosting platform's deployment readiness enum.
type DeployState string

const (
	DeployStateBuilding DeployState = "BUILDING"
	DeployStateReady    DeployState = "READY"
	DeployStateError    DeployState = "ERROR"
	DeployStateCanceled DeployState = "CANCELED"
)

// HostingProject is a project on the hosting platform.
type HostingProject struct {
	ID   string
	Name string
}

// Deployment is one deployment of a hosting project.
type Deployment struct {
	ID    string
	URL   string
	State DeployState
}

// EnvVar is one environment variable set on a hosting project.
type EnvVar struct {
	Key    string
	Value  string
	Target []string
}

// HostingPlatform manages hosted projects, deployments and domain bindings.
type HostingPlatform interface {
	// GetProject returns nil without error when no project exists.
	GetProject(ctx context.Context, name string) (*HostingProject, error)
	CreateProject(ctx context.Context, name, repoFullName string) (*HostingProject, error)
	SetEnvVars(ctx context.Context, projectID string, vars []EnvVar) error
	TriggerDeploy(ctx context.Context, projectID string) (*Deployment, error)
	GetDeployment(ctx context.Context, deploymentID string) (*Deployment, error)
	// AddDomain is idempotent: binding an already-bound domain succeeds.
	AddDomain(ctx context.Context, projectID, domainName string) error
	RemoveDomain(ctx context.Context, projectID, domainName string) error
	DomainVerified(ctx context.Context, projectID, domainName string) (bool, error)
}

// Registrar purchases and manages custom domains.
type Registrar interface {
	PriceCents(ctx context.Context, domainName string) (int64, error)
	Purchase(ctx context.Context, domainName string, years int) error
	PointDNSToHosting(ctx context.Context, domainName string) error
	Renew(ctx context.Context, domainName string) error
}
