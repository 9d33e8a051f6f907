package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaBroker writes envelopes to one topic keyed by channel, so a thread
// keeps its order within a partition. Each instance reads with its own
// consumer group, which makes every instance see every envelope.
type KafkaBroker struct {
	writer  *kafka.Writer
	brokers []string
	topic   string
	groupID string
	log     *zap.Logger
}

func NewKafkaBroker(brokers []string, topic string, log *zap.Logger) *KafkaBroker {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &KafkaBroker{
		writer:  writer,
		brokers: brokers,
		topic:   topic,
		groupID: "campuschat-gateway-" + uuid.NewString(),
		log:     log,
	}
}

func (b *KafkaBroker) Publish(ctx context.Context, env *Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(env.Channel),
		Value: data,
		Time:  time.Now(),
	})
}

func (b *KafkaBroker) Subscribe(ctx context.Context, handler Handler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.brokers,
		Topic:       b.topic,
		GroupID:     b.groupID,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	defer reader.Close()

	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		var env Envelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			b.log.Warn("dropping malformed envelope", zap.Int64("offset", m.Offset), zap.Error(err))
			continue
		}
		handler(&env)
	}
}

func (b *KafkaBroker) Close() error {
	return b.writer.Close()
}
