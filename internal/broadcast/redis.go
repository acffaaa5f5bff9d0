package broadcast

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Fanout publishes to the in-process hub and, when a Redis client is
// attached, mirrors every message onto the Redis channel of the same name so
// that out-of-process socket gateways can subscribe too. The mirror is
// best-effort: a Redis failure is logged and otherwise ignored.
type Fanout struct {
	hub *Hub
	rdb *redis.Client

	// OnPublish, when set, observes every publish outcome.
	OnPublish func(delivered, dropped int)
}

// NewFanout wraps the hub; rdb may be nil for hub-only operation.
func NewFanout(hub *Hub, rdb *redis.Client) *Fanout {
	return &Fanout{hub: hub, rdb: rdb}
}

// Publish delivers to hub subscribers and mirrors to Redis.
func (f *Fanout) Publish(topic string, payload any) (delivered, dropped int) {
	delivered, dropped = f.hub.Publish(topic, payload)
	if f.OnPublish != nil {
		f.OnPublish(delivered, dropped)
	}

	if f.rdb != nil {
		data, err := json.Marshal(Message{Topic: topic, Payload: payload})
		if err != nil {
			log.Printf("broadcast: marshal for redis mirror: %v", err)
			return delivered, dropped
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := f.rdb.Publish(ctx, topic, data).Err(); err != nil {
			log.Printf("broadcast: redis mirror publish: %v", err)
		}
	}
	return delivered, dropped
}
