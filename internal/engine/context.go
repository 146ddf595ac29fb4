package engine

import (
	"context"
	"errors"
	"fmt"

	"hostforge/internal/domain"
)

// Context is the per-job handle passed to every step: immutable job identity
// plus logging and state-store access.
type Context struct {
	JobID     string
	ProjectID string
	JobType   domain.JobType

	engine *Engine
}

// Log durably appends a job log entry and mirrors it to the process logger.
// Append failures are reported to the process logger and otherwise swallowed:
// observability is best effort, not part of the job's correctness contract.
func (c *Context) Log(ctx context.Context, level domain.LogLevel, format string, args ...any) {
	message := fmt.Sprintf(format, args...)

	event := c.engine.logger.Info()
	switch level {
	case domain.LogLevelWarn:
		event = c.engine.logger.Warn()
	case domain.LogLevelError:
		event = c.engine.logger.Error()
	}
	event.Str("job_id", c.JobID).Str("job_type", string(c.JobType)).Msg(message)

	if err := c.engine.store.AppendJobLog(ctx, c.JobID, level, message); err != nil {
		c.engine.logger.Warn().Err(err).Str("job_id", c.JobID).Msg("engine: job log append failed")
	}
}

// project loads the job's project, failing with a descriptive error when the
// record is gone.
func (c *Context) project(ctx context.Context) (*domain.Project, error) {
	p, err := c.engine.store.GetProject(ctx, c.ProjectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("project %s not found", c.ProjectID)
		}
		return nil, fmt.Errorf("load project %s: %w", c.ProjectID, err)
	}
	return p, nil
}
