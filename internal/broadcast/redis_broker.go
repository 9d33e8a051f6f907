package broadcast

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker publishes each envelope on the redis channel <prefix>:<topic>
// and pattern-subscribes to <prefix>:* so every instance sees every topic.
type RedisBroker struct {
	client *redis.Client
	prefix string
	log    *zap.Logger
}

func NewRedisBroker(client *redis.Client, prefix string, log *zap.Logger) *RedisBroker {
	return &RedisBroker{client: client, prefix: prefix, log: log}
}

func (b *RedisBroker) channel(topic string) string {
	return b.prefix + ":" + topic
}

func (b *RedisBroker) Publish(ctx context.Context, env *Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel(env.Channel), data).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, handler Handler) error {
	ps := b.client.PSubscribe(ctx, b.channel("*"))
	defer ps.Close()

	// Wait for the subscription to be confirmed before reading.
	if _, err := ps.Receive(ctx); err != nil {
		return err
	}

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Warn("dropping malformed envelope", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			handler(&env)
		}
	}
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
