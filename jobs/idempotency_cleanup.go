package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// IdempotencyCleaner prunes stored request keys.
type IdempotencyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// IdempotencyCleanupJob drops checkout keys old enough that a client retry
// is no longer plausible.
type IdempotencyCleanupJob struct {
	Store  IdempotencyCleaner
	Logger *slog.Logger
	MaxAge time.Duration
}

// NewIdempotencyCleanupJob initialises the cleanup handler.
func NewIdempotencyCleanupJob(store IdempotencyCleaner, logger *slog.Logger) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{Store: store, Logger: logger, MaxAge: 24 * time.Hour}
}

// Handle executes the cleanup.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	if err := j.Store.Cleanup(ctx, j.MaxAge); err != nil {
		j.Logger.Error("idempotency cleanup", slog.Any("error", err))
		return err
	}
	return nil
}
