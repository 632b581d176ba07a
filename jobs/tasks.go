package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueMaintenance holds low priority housekeeping jobs.
	QueueMaintenance = "maintenance"

	// TaskLowStockCheck inspects one item after stock left it.
	TaskLowStockCheck = "stock:low_check"
	// TaskIdempotencyCleanup drops expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// LowStockPayload identifies the item to inspect.
type LowStockPayload struct {
	ItemID int64 `json:"item_id"`
}

// NewLowStockCheckTask constructs a low-stock check task.
func NewLowStockCheckTask(itemID int64) (*asynq.Task, error) {
	if itemID <= 0 {
		return nil, fmt.Errorf("jobs: invalid item id %d", itemID)
	}
	body, err := json.Marshal(LowStockPayload{ItemID: itemID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockCheck, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// NewIdempotencyCleanupTask constructs the cleanup task registered on cron.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.Queue(QueueMaintenance), asynq.MaxRetry(1))
}
