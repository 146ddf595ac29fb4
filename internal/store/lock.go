package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"hostforge/internal/domain"
	"hostforge/internal/sqlinline"
)

// ProjectLock is a held per-project advisory lock. The lock is session
// scoped, so the acquiring connection stays pinned until Release.
type ProjectLock struct {
	conn      *pgxpool.Conn
	projectID string
}

// AcquireProjectLock takes the advisory lock for a project, or fails fast
// with ErrProjectLocked when another job holds it. The marker comment in the
// statement is valid SQL, so the pinned connection runs it verbatim.
func (s *Store) AcquireProjectLock(ctx context.Context, projectID string) (*ProjectLock, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("project locks require a pool-backed store")
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock connection: %w", err)
	}

	var locked bool
	if err := conn.QueryRow(ctx, sqlinline.QTryProjectLock, projectID).Scan(&locked); err != nil {
		conn.Release()
		return nil, fmt.Errorf("try project lock: %w", err)
	}
	if !locked {
		conn.Release()
		return nil, fmt.Errorf("%w: %s", domain.ErrProjectLocked, projectID)
	}
	return &ProjectLock{conn: conn, projectID: projectID}, nil
}

// Release unlocks and returns the pinned connection to the pool. Safe to call
// once; the connection is released even if the unlock statement fails.
func (l *ProjectLock) Release(ctx context.Context) error {
	if l == nil || l.conn == nil {
		return nil
	}
	defer func() {
		l.conn.Release()
		l.conn = nil
	}()

	var unlocked bool
	if err := l.conn.QueryRow(ctx, sqlinline.QUnlockProject, l.projectID).Scan(&unlocked); err != nil {
		return fmt.Errorf("unlock project: %w", err)
	}
	if !unlocked {
		return fmt.Errorf("project %s was not locked by this session", l.projectID)
	}
	return nil
}
