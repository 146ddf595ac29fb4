package domain

import "time"

// Plan enumerates the hosted-project plans.
type Plan string

const (
	PlanWebsite Plan = "website"
	PlanWebapp  Plan = "webapp"
	PlanAuthDB  Plan = "authdb"
	PlanAI      Plan = "ai"
)

// Valid reports whether p names a known plan.
func (p Plan) Valid() bool {
	switch p {
	case PlanWebsite, PlanWebapp, PlanAuthDB, PlanAI:
		return true
	}
	return false
}

// ProjectStatus is the project's own lifecycle, independent of job state.
type ProjectStatus string

const (
	ProjectStatusCreating  ProjectStatus = "creating"
	ProjectStatusLive      ProjectStatus = "live"
	ProjectStatusSuspended ProjectStatus = "suspended"
	ProjectStatusDeleted   ProjectStatus = "deleted"
)

// Project is a hosted project. References to external resources are acquired
// progressively during provisioning and persisted as soon as each exists.
type Project struct {
	ID              string
	UserID          string
	Name            string
	Slug            string
	Plan            Plan
	Status          ProjectStatus
	GitHubRepoID    string
	VercelProjectID string
	PrimaryURL      string
	PendingDomain   string
	CreatedAt       time.Time
}
