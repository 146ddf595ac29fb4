package domain

import "time"

// JobType enumerates supported provisioning job categories.
type JobType string

const (
	JobTypeCreate       JobType = "create"
	JobTypeUpgrade      JobType = "upgrade"
	JobTypeRedeploy     JobType = "redeploy"
	JobTypeAttachDomain JobType = "attach_domain"
	JobTypeRelease      JobType = "release"
)

// Valid reports whether t is one of the known job types.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeCreate, JobTypeUpgrade, JobTypeRedeploy, JobTypeAttachDomain, JobTypeRelease:
		return true
	}
	return false
}

// JobState enumerates job lifecycle states.
type JobState string

const (
	JobStateQueued  JobState = "queued"
	JobStateRunning JobState = "running"
	JobStateFailed  JobState = "failed"
	JobStateDone    JobState = "done"
)

// Terminal reports whether no further automatic transition occurs from s.
func (s JobState) Terminal() bool {
	return s == JobStateDone || s == JobStateFailed
}

// Job is one provisioning or maintenance run for a project, composed of an
// ordered list of steps executed by the worker.
type Job struct {
	ID         string
	ProjectID  string
	Type       JobType
	State      JobState
	Step       string
	Error      string
	StartedAt  *time.Time
	FinishedAt *time.Time
	CreatedAt  time.Time
}

// LogLevel enumerates job log severities.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// JobLogEntry is one append-only log line belonging to a job.
type JobLogEntry struct {
	ID        int64
	JobID     string
	Level     LogLevel
	Message   string
	Timestamp time.Time
}
