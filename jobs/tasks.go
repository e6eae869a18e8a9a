package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPromotionSweep deactivates promotions whose window has closed.
	TaskPromotionSweep = "promotions:sweep"
	// TaskExpiryScan flags lots approaching their expiry date.
	TaskExpiryScan = "inventory:expiry_scan"
	// TaskIdempotencyCleanup prunes stale checkout idempotency keys.
	TaskIdempotencyCleanup = "sales:idempotency_cleanup"
)

// ExpiryScanPayload tunes the near-expiry scan window.
type ExpiryScanPayload struct {
	WindowDays int `json:"window_days"`
}

// NewPromotionSweepTask constructs the sweep task.
func NewPromotionSweepTask() *asynq.Task {
	return asynq.NewTask(TaskPromotionSweep, nil)
}

// NewExpiryScanTask constructs the expiry scan task.
func NewExpiryScanTask(payload ExpiryScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpiryScan, data), nil
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}
