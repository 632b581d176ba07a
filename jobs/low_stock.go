package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/stockflow/internal/items"
)

// ItemReader loads a single item.
type ItemReader interface {
	Get(ctx context.Context, id int64) (items.Item, error)
}

// Metrics records job outcomes.
type Metrics interface {
	ObserveJob(task string, err error)
}

// LowStockJob warns when an item dropped to or below its threshold.
type LowStockJob struct {
	Items   ItemReader
	Logger  *slog.Logger
	Metrics Metrics
}

// NewLowStockJob initialises the low-stock handler.
func NewLowStockJob(reader ItemReader, logger *slog.Logger, metrics Metrics) *LowStockJob {
	return &LowStockJob{Items: reader, Logger: logger, Metrics: metrics}
}

// Handle executes the low-stock check.
func (j *LowStockJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Items == nil {
		return errors.New("low stock check: handler not configured")
	}
	defer func() {
		if j.Metrics != nil {
			j.Metrics.ObserveJob(TaskLowStockCheck, err)
		}
	}()

	var payload LowStockPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.ItemID <= 0 {
		return fmt.Errorf("low stock check: bad payload: %w", asynq.SkipRetry)
	}

	item, err := j.Items.Get(ctx, payload.ItemID)
	if errors.Is(err, items.ErrNotFound) {
		j.logger().Info("low stock check skipped, item gone", slog.Int64("item_id", payload.ItemID))
		return nil
	}
	if err != nil {
		return err
	}
	if !item.LowStock() {
		return nil
	}
	j.logger().Warn("item at or below threshold",
		slog.Int64("item_id", item.ID),
		slog.Int64("location_id", item.LocationID),
		slog.String("name", item.Name),
		slog.Int("quantity", item.Quantity),
		slog.Int("min_threshold", item.MinThreshold),
	)
	return nil
}

func (j *LowStockJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
