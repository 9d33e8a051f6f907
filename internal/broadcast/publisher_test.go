package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/campuschat/internal/config"
	"github.com/vedran77/campuschat/internal/domain"
	"go.uber.org/zap"
)

type recordingBroker struct {
	mu    sync.Mutex
	sent  []*Envelope
	fail  error
	calls int
}

func (b *recordingBroker) Publish(_ context.Context, env *Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.fail != nil {
		return b.fail
	}
	b.sent = append(b.sent, env)
	return nil
}

func (b *recordingBroker) Subscribe(ctx context.Context, _ Handler) error {
	<-ctx.Done()
	return nil
}

func (b *recordingBroker) Close() error { return nil }

func testBroadcastConfig() config.BroadcastConfig {
	return config.BroadcastConfig{
		Broker:         "local",
		PublishTimeout: time.Second,
		Breaker: config.BreakerConfig{
			MaxFailures: 3,
			Interval:    time.Minute,
			Timeout:     time.Minute,
		},
	}
}

func TestNotifyNewMessageTopics(t *testing.T) {
	broker := &recordingBroker{}
	p := NewPublisher(broker, testBroadcastConfig(), zap.NewNop())

	a, b, g := uuid.New(), uuid.New(), uuid.New()
	p.NotifyNewMessage(&domain.Message{ID: uuid.New(), SenderID: a, ReceiverID: &b})
	p.NotifyNewMessage(&domain.Message{ID: uuid.New(), SenderID: a, GroupID: &g})

	if len(broker.sent) != 2 {
		t.Fatalf("expected 2 envelopes, got %d", len(broker.sent))
	}
	if broker.sent[0].Event != EventNewMessage || broker.sent[0].Channel != PairTopic(a, b) {
		t.Fatalf("unexpected private envelope %+v", broker.sent[0])
	}
	var payload NewMessagePayload
	if err := json.Unmarshal(broker.sent[0].Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Type != "private" || payload.ReceiverID == nil || *payload.ReceiverID != b || payload.GroupID != nil {
		t.Fatalf("unexpected private payload %+v", payload)
	}

	if broker.sent[1].Channel != GroupTopic(g) {
		t.Fatalf("group message on wrong topic %q", broker.sent[1].Channel)
	}
	if err := json.Unmarshal(broker.sent[1].Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Type != "group" {
		t.Fatalf("expected group payload, got %q", payload.Type)
	}
}

func TestNotifyMessagesReadSkipsZero(t *testing.T) {
	broker := &recordingBroker{}
	p := NewPublisher(broker, testBroadcastConfig(), zap.NewNop())

	reader, s1, s2 := uuid.New(), uuid.New(), uuid.New()
	p.NotifyMessagesRead([]domain.ReadReceipt{
		{ReceiverID: reader, SenderID: s1, MarkedCount: 2},
		{ReceiverID: reader, SenderID: s2, MarkedCount: 0},
	})

	if len(broker.sent) != 1 {
		t.Fatalf("expected 1 envelope, got %d", len(broker.sent))
	}
	env := broker.sent[0]
	if env.Event != EventMessageRead || env.Channel != UserTopic(s1) {
		t.Fatalf("read receipt must go to the sender's user topic, got %+v", env)
	}
	var payload MessageReadPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.ReceiverID != reader || payload.MarkedCount != 2 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestNotifyMembershipChangeTopics(t *testing.T) {
	broker := &recordingBroker{}
	p := NewPublisher(broker, testBroadcastConfig(), zap.NewNop())

	g, u := uuid.New(), uuid.New()
	p.NotifyMemberRemoved(g, u)
	p.NotifyGroupDeleted(g)

	if len(broker.sent) != 2 {
		t.Fatalf("expected 2 envelopes, got %d", len(broker.sent))
	}
	removed := broker.sent[0]
	if removed.Event != EventMemberRemoved || removed.Channel != UserTopic(u) {
		t.Fatalf("member removal must go to the removed user's topic, got %+v", removed)
	}
	var rp MemberRemovedPayload
	if err := json.Unmarshal(removed.Data, &rp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rp.GroupID != g || rp.UserID != u {
		t.Fatalf("unexpected payload %+v", rp)
	}

	deleted := broker.sent[1]
	if deleted.Event != EventGroupDeleted || deleted.Channel != GroupTopic(g) {
		t.Fatalf("group deletion must go to the group topic, got %+v", deleted)
	}
}

func TestPublishFailuresAreSwallowedAndTripBreaker(t *testing.T) {
	broker := &recordingBroker{fail: errors.New("redis down")}
	p := NewPublisher(broker, testBroadcastConfig(), zap.NewNop())

	a, b := uuid.New(), uuid.New()
	msg := &domain.Message{ID: uuid.New(), SenderID: a, ReceiverID: &b}
	for i := 0; i < 10; i++ {
		p.NotifyNewMessage(msg)
	}

	// After MaxFailures the breaker opens and stops calling the broker.
	if broker.calls != 3 {
		t.Fatalf("expected breaker to stop after 3 calls, got %d", broker.calls)
	}
}

func TestLocalBrokerFanOut(t *testing.T) {
	b := NewLocalBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Envelope, 2)
	var ready sync.WaitGroup
	for i := 0; i < 2; i++ {
		ready.Add(1)
		go func() {
			ready.Done()
			_ = b.Subscribe(ctx, func(env *Envelope) { got <- env })
		}()
	}
	ready.Wait()

	// Subscription registration happens inside Subscribe; wait for both.
	deadline := time.Now().Add(2 * time.Second)
	for {
		b.mu.RLock()
		n := len(b.subs)
		b.mu.RUnlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("subscribers never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	env, err := NewEnvelope(EventNewMessage, "group:x", map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if err := b.Publish(ctx, env); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case e := <-got:
			if e.Channel != "group:x" {
				t.Fatalf("unexpected channel %q", e.Channel)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("subscriber %d did not receive envelope", i)
		}
	}

	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
