package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/pressdesk/pressdesk/internal/inventory"
	jobmetrics "github.com/pressdesk/pressdesk/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeLowStockAlert is the task type for low-stock alert delivery.
	TaskTypeLowStockAlert = "alerts:low_stock"
)

// NewLowStockAlertTask constructs an Asynq task from a threshold crossing.
func NewLowStockAlertTask(evt inventory.LowStockCrossedEvent) (*asynq.Task, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeLowStockAlert, payload, asynq.Queue(QueueDefault)), nil
}

// HandleLowStockAlertTask processes TaskTypeLowStockAlert tasks. Delivery to
// operators (mail, chat) is owned by the notification subsystem; the worker
// hands the event over and records it.
func HandleLowStockAlertTask(ctx context.Context, t *asynq.Task) error {
	tracker := jobmetrics.NewMetrics(nil).Track(TaskTypeLowStockAlert)
	var evt inventory.LowStockCrossedEvent
	if err := json.Unmarshal(t.Payload(), &evt); err != nil {
		return tracker.End(asynq.SkipRetry)
	}
	slog.Default().Info("low stock alert",
		slog.String("material_id", evt.MaterialID),
		slog.String("material_name", evt.MaterialName),
		slog.String("status", string(evt.Status)),
		slog.Int64("percentage", evt.Percentage),
		slog.Int64("current_stock_sheets", evt.CurrentStockSheets))
	return tracker.End(nil)
}

// AlertEnqueuer publishes threshold crossings as background alert tasks.
// It implements inventory.EventPublisher.
type AlertEnqueuer struct {
	client *asynq.Client
}

// NewAlertEnqueuer constructs AlertEnqueuer.
func NewAlertEnqueuer(client *asynq.Client) *AlertEnqueuer {
	return &AlertEnqueuer{client: client}
}

// PublishLowStockCrossed enqueues the alert task.
func (e *AlertEnqueuer) PublishLowStockCrossed(ctx context.Context, evt inventory.LowStockCrossedEvent) error {
	task, err := NewLowStockAlertTask(evt)
	if err != nil {
		return err
	}
	_, err = e.client.EnqueueContext(ctx, task)
	return err
}
