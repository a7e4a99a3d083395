package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/notebook/internal/repository"
)

// TaskSessionCleanup is the name of the expired session pruning task.
const TaskSessionCleanup = "session-cleanup"

// SessionPruner deletes sessions past their expiry.
type SessionPruner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// SessionCleanupTask removes expired sessions so the sessions table does not
// grow without bound. Expired sessions are already rejected on resolve.
type SessionCleanupTask struct {
	sessions SessionPruner
	logger   *slog.Logger
}

// NewSessionCleanupTask creates the session cleanup task.
func NewSessionCleanupTask(sessions SessionPruner, logger *slog.Logger) *SessionCleanupTask {
	return &SessionCleanupTask{sessions: sessions, logger: logger}
}

// Name implements Task.
func (t *SessionCleanupTask) Name() string { return TaskSessionCleanup }

// Run implements Task.
func (t *SessionCleanupTask) Run(ctx context.Context) error {
	n, err := t.sessions.DeleteExpired(ctx)
	if err != nil {
		// Retrying cannot help until the migrations are applied.
		if repository.IsUndefinedTable(err) {
			return NewPermanentError(fmt.Errorf("delete expired sessions: %w", err))
		}
		return fmt.Errorf("delete expired sessions: %w", err)
	}
	if n > 0 {
		t.logger.Info("Pruned expired sessions", "count", n)
	}
	return nil
}
