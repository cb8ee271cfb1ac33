package inventory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// LowStockChannel is the redis channel threshold crossings are published on.
// The notification subsystem subscribes to it.
const LowStockChannel = "pressdesk:alerts:low_stock"

// LowStockCrossedEvent signals that an adjustment moved a material into the
// LOW or CRITICAL band. Emitted only on transitions, never on reads.
type LowStockCrossedEvent struct {
	MaterialID         string      `json:"material_id"`
	MaterialName       string      `json:"material_name"`
	Status             StockStatus `json:"status"`
	Percentage         int64       `json:"percentage"`
	CurrentStockSheets int64       `json:"current_stock_sheets"`
	ThresholdSheets    int64       `json:"threshold_sheets"`
	ReorderQuantity    int64       `json:"reorder_quantity,omitempty"`
	OccurredAt         time.Time   `json:"occurred_at"`
}

// RedisEventPublisher broadcasts events over redis pub/sub.
type RedisEventPublisher struct {
	client *redis.Client
}

// NewRedisEventPublisher constructs the publisher.
func NewRedisEventPublisher(client *redis.Client) *RedisEventPublisher {
	return &RedisEventPublisher{client: client}
}

// PublishLowStockCrossed serialises the event and publishes it.
func (p *RedisEventPublisher) PublishLowStockCrossed(ctx context.Context, evt LowStockCrossedEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, LowStockChannel, payload).Err()
}
