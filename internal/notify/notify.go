// Package notify publishes row-change events over Redis pub/sub so
// connected clients can refresh availability and booking lists without
// polling. Delivery is best effort: a dropped event only delays a
// refresh, it never loses data.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"studiopass/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const channelPrefix = "studiopass:changes:"

// Event is the wire format pushed to subscribers. Table names the
// logical table that changed, Op is one of insert, update, delete.
type Event struct {
	ID      string      `json:"id"`
	Table   string      `json:"table"`
	Op      string      `json:"op"`
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
}

type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish fans an event out on the per-table channel. Failures are
// logged and swallowed so a Redis outage never fails the write that
// triggered the event.
func (p *Publisher) Publish(ctx context.Context, table, op string, payload interface{}) {
	event := Event{
		ID:      uuid.NewString(),
		Table:   table,
		Op:      op,
		Payload: payload,
		At:      time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("failed to marshal change event", "table", table, "op", op, "error", err)
		return
	}

	if err := p.client.Publish(ctx, channelPrefix+table, string(data)).Err(); err != nil {
		logger.Error("failed to publish change event", "table", table, "op", op, "error", err)
	}
}

// Channel returns the pub/sub channel name for a logical table.
// Subscribers use it to follow a single table's changes.
func Channel(table string) string {
	return channelPrefix + table
}

func (p *Publisher) Close() error {
	return p.client.Close()
}
