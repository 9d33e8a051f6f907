package broadcast

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func TestRedisBrokerRoundTrip(t *testing.T) {
	addr := os.Getenv("CAMPUSCHAT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CAMPUSCHAT_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	b := NewRedisBroker(client, "campuschat-test", zap.NewNop())
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan *Envelope, 1)
	go func() {
		_ = b.Subscribe(ctx, func(env *Envelope) { got <- env })
	}()
	time.Sleep(200 * time.Millisecond)

	env, _ := NewEnvelope(EventMessageRead, "user:abc", map[string]int{"markedCount": 1})
	if err := b.Publish(ctx, env); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case e := <-got:
		if e.Channel != "user:abc" || e.Event != EventMessageRead {
			t.Fatalf("unexpected envelope %+v", e)
		}
	case <-ctx.Done():
		t.Fatalf("no envelope received")
	}
}
