package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker fans events out across API instances with Redis pub/sub.
type RedisBroker struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisBroker(client *redis.Client, log *zap.Logger) *RedisBroker {
	return &RedisBroker{client: client, log: log.Named("realtime")}
}

func (b *RedisBroker) Publish(ctx context.Context, topic string, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (<-chan Event, func(), error) {
	ps := b.client.Subscribe(ctx, topic)
	// Receive blocks until the subscription is confirmed so a publish right
	// after Subscribe returns is not lost.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan Event, subscriberBuffer)
	var once sync.Once
	cancel := func() {
		once.Do(func() { _ = ps.Close() })
	}

	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.Warn("drop malformed event", zap.String("topic", topic), zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				default:
				}
			}
		}
	}()
	return out, cancel, nil
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
