package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
)

// PromotionSweeper deactivates expired promotions.
type PromotionSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// PromotionSweepJob closes promotion windows that have elapsed so the POS
// stops offering stale discounts even between cache bumps.
type PromotionSweepJob struct {
	Promotions PromotionSweeper
	Logger     *slog.Logger
}

// NewPromotionSweepJob initialises the sweep handler.
func NewPromotionSweepJob(promos PromotionSweeper, logger *slog.Logger) *PromotionSweepJob {
	return &PromotionSweepJob{Promotions: promos, Logger: logger}
}

// Handle executes the sweep.
func (j *PromotionSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Promotions == nil {
		return errors.New("promotion sweep: handler not configured")
	}
	n, err := j.Promotions.SweepExpired(ctx)
	if err != nil {
		j.Logger.Error("promotion sweep", slog.Any("error", err))
		return err
	}
	if n > 0 {
		j.Logger.Info("promotion sweep", slog.Int("deactivated", n))
	}
	return nil
}
