package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "documents."

// RedisBroker fans document change events out across service instances
// over Redis pub/sub, one channel per collection.
type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return b.client.Publish(ctx, channelPrefix+event.Collection, payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, collection string, handler func(Event)) (Unsubscribe, error) {
	sub := b.client.Subscribe(ctx, channelPrefix+collection)

	// Force the SUBSCRIBE round-trip so setup failures surface here
	// instead of silently inside the receive loop.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("%w: %v", ErrSubscriptionSetupFailed, err)
	}

	go func() {
		for msg := range sub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("realtime: drop malformed event on %s: %v", msg.Channel, err)
				continue
			}
			handler(event)
		}
	}()

	return func() {
		_ = sub.Close()
	}, nil
}
