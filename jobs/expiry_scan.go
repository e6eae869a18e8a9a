package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/farmapos/farmapos/internal/inventory"
)

// ExpiryLister exposes the near-expiry lot query.
type ExpiryLister interface {
	NearExpiry(ctx context.Context, windowDays int) ([]inventory.Lot, error)
}

// ExpiryScanJob logs lots approaching expiry so the morning shift sees them
// in the worker output and monitoring picks them up.
type ExpiryScanJob struct {
	Inventory ExpiryLister
	Logger    *slog.Logger
	clock     func() time.Time
}

// NewExpiryScanJob initialises the expiry scan handler.
func NewExpiryScanJob(inv ExpiryLister, logger *slog.Logger) *ExpiryScanJob {
	return &ExpiryScanJob{Inventory: inv, Logger: logger, clock: time.Now}
}

// Handle executes the scan.
func (j *ExpiryScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Inventory == nil {
		return errors.New("expiry scan: handler not configured")
	}
	var payload ExpiryScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.WindowDays <= 0 {
		payload.WindowDays = 30
	}

	lots, err := j.Inventory.NearExpiry(ctx, payload.WindowDays)
	if err != nil {
		j.Logger.Error("expiry scan", slog.Any("error", err))
		return err
	}
	now := j.clock()
	for _, lot := range lots {
		j.Logger.Warn("lot near expiry",
			slog.String("lot", lot.LotNumber),
			slog.Int64("product_id", lot.ProductID),
			slog.Int("days_left", lot.DaysToExpiry(now)),
			slog.Int("quantity", lot.QuantityAvailable),
		)
	}
	j.Logger.Info("expiry scan complete", slog.Int("window_days", payload.WindowDays), slog.Int("lots", len(lots)))
	return nil
}
