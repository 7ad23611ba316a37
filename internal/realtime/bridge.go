package realtime

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

const changesChannel = "pauta:changes"

// Bridge publishes change events. With Redis configured, events go through
// a pub/sub channel so every API instance delivers them to its own
// websocket clients. Without Redis, events go straight to the local hub.
type Bridge struct {
	hub    *Hub
	client *redis.Client
	cancel context.CancelFunc
}

// NewBridge wires the hub to Redis pub/sub. redisURL may be empty, in
// which case the bridge degrades to single-instance local delivery.
func NewBridge(hub *Hub, redisURL string) *Bridge {
	b := &Bridge{hub: hub}
	if redisURL == "" {
		return b
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("realtime: parse redis url: %v", err)
		return b
	}
	b.client = redis.NewClient(opts)

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	go b.subscribe(ctx)
	return b
}

func (b *Bridge) subscribe(ctx context.Context) {
	sub := b.client.Subscribe(ctx, changesChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("realtime: decode event: %v", err)
				continue
			}
			b.hub.Notify(ev)
		}
	}
}

// Publish sends a change event to all subscribers.
func (b *Bridge) Publish(ev Event) {
	if b.client == nil {
		b.hub.Notify(ev)
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := b.client.Publish(context.Background(), changesChannel, payload).Err(); err != nil {
		log.Printf("realtime: publish: %v", err)
		// Deliver locally so this instance's clients still hear about it.
		b.hub.Notify(ev)
	}
}

// Close stops the subscriber and releases the Redis connection.
func (b *Bridge) Close() {
	if b.cancel != nil {
		b.cancel()
	}
	if b.client != nil {
		b.client.Close()
	}
}
