package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/campuschat/internal/broadcast"
	"go.uber.org/zap"
)

func testClient(hub *Hub, userID uuid.UUID, buf int) *Client {
	c := &Client{
		hub:    hub,
		userID: userID,
		topics: make(map[string]struct{}),
		send:   make(chan []byte, buf),
		log:    zap.NewNop(),
	}
	c.Subscribe(broadcast.UserTopic(userID))
	return c
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.done
	})
	return hub
}

func recv(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case data := <-c.send:
		return data
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func TestHubDeliversOnlyToSubscribers(t *testing.T) {
	hub := startHub(t)
	alice, bob := uuid.New(), uuid.New()

	a := testClient(hub, alice, 4)
	b := testClient(hub, bob, 4)
	hub.Register(a)
	hub.Register(b)

	env, err := broadcast.NewEnvelope(broadcast.EventNewMessage, broadcast.UserTopic(alice), map[string]string{"k": "v"})
	if err != nil {
		t.Fatal(err)
	}
	hub.Deliver(env)

	if data := recv(t, a); len(data) == 0 {
		t.Fatal("empty frame")
	}
	// A second delivery to bob proves ordering and that alice's frame never reached him.
	env2, _ := broadcast.NewEnvelope(broadcast.EventNewMessage, broadcast.UserTopic(bob), nil)
	hub.Deliver(env2)
	got := recv(t, b)
	if want, _ := json.Marshal(env2); string(got) != string(want) {
		t.Fatalf("bob got %s, want %s", got, want)
	}
}

func TestHubGroupTopicFanOut(t *testing.T) {
	hub := startHub(t)
	groupID := uuid.New()
	topic := broadcast.GroupTopic(groupID)

	clients := []*Client{
		testClient(hub, uuid.New(), 4),
		testClient(hub, uuid.New(), 4),
	}
	for _, c := range clients {
		c.Subscribe(topic)
		hub.Register(c)
	}
	outsider := testClient(hub, uuid.New(), 4)
	hub.Register(outsider)

	env, _ := broadcast.NewEnvelope(broadcast.EventNewMessage, topic, nil)
	hub.Deliver(env)

	for _, c := range clients {
		recv(t, c)
	}
	select {
	case <-outsider.send:
		t.Fatal("outsider received group frame")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := startHub(t)
	user := uuid.New()
	slow := testClient(hub, user, 1)
	hub.Register(slow)

	topic := broadcast.UserTopic(user)
	for i := 0; i < 3; i++ {
		env, _ := broadcast.NewEnvelope(broadcast.EventNewMessage, topic, i)
		hub.Deliver(env)
	}

	deadline := time.Now().Add(time.Second)
	for {
		slow.sendMu.Lock()
		closed := slow.closed
		slow.sendMu.Unlock()
		if closed {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("slow client was not dropped")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubClosesClientsOnShutdown(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	c := testClient(hub, uuid.New(), 1)
	if !hub.Register(c) {
		t.Fatal("register failed on running hub")
	}
	cancel()
	<-hub.done

	if _, ok := <-c.send; ok {
		t.Fatal("send channel should be closed")
	}
	if hub.Register(testClient(hub, uuid.New(), 1)) {
		t.Fatal("register should fail after shutdown")
	}
}

func TestHubMemberRemovedEndsGroupSubscription(t *testing.T) {
	hub := startHub(t)
	groupID := uuid.New()
	topic := broadcast.GroupTopic(groupID)

	removed := testClient(hub, uuid.New(), 4)
	// Second connection of the same user.
	removedTab := testClient(hub, removed.userID, 4)
	stays := testClient(hub, uuid.New(), 4)
	for _, c := range []*Client{removed, removedTab, stays} {
		c.Subscribe(topic)
		hub.Register(c)
	}

	notice, _ := broadcast.NewEnvelope(broadcast.EventMemberRemoved, broadcast.UserTopic(removed.userID),
		broadcast.MemberRemovedPayload{GroupID: groupID, UserID: removed.userID})
	hub.Deliver(notice)
	for _, c := range []*Client{removed, removedTab} {
		var env broadcast.Envelope
		if err := json.Unmarshal(recv(t, c), &env); err != nil {
			t.Fatal(err)
		}
		if env.Event != broadcast.EventMemberRemoved {
			t.Fatalf("event = %q, want member_removed", env.Event)
		}
	}

	msg, _ := broadcast.NewEnvelope(broadcast.EventNewMessage, topic, nil)
	hub.Deliver(msg)
	// The hub handles deliveries in order, so once stays has the message
	// the removed connections would have theirs too.
	recv(t, stays)
	for _, c := range []*Client{removed, removedTab} {
		select {
		case data := <-c.send:
			t.Fatalf("removed member received %s", data)
		default:
		}
		if c.IsSubscribed(topic) {
			t.Fatal("removed member still subscribed to group topic")
		}
		if !c.IsSubscribed(broadcast.UserTopic(c.userID)) {
			t.Fatal("user topic must survive removal")
		}
	}
	if !stays.IsSubscribed(topic) {
		t.Fatal("remaining member lost its subscription")
	}
}

func TestHubGroupDeletedUnsubscribesEveryone(t *testing.T) {
	hub := startHub(t)
	groupID := uuid.New()
	topic := broadcast.GroupTopic(groupID)

	a := testClient(hub, uuid.New(), 4)
	b := testClient(hub, uuid.New(), 4)
	for _, c := range []*Client{a, b} {
		c.Subscribe(topic)
		hub.Register(c)
	}

	deleted, _ := broadcast.NewEnvelope(broadcast.EventGroupDeleted, topic, broadcast.GroupDeletedPayload{GroupID: groupID})
	hub.Deliver(deleted)
	recv(t, a)
	recv(t, b)

	msg, _ := broadcast.NewEnvelope(broadcast.EventNewMessage, topic, nil)
	hub.Deliver(msg)
	// Marker on a's own topic; it arrives only after msg was processed.
	marker, _ := broadcast.NewEnvelope(broadcast.EventNewMessage, broadcast.UserTopic(a.userID), "marker")
	hub.Deliver(marker)
	got := recv(t, a)
	if want, _ := json.Marshal(marker); string(got) != string(want) {
		t.Fatalf("a got %s, want only the marker", got)
	}
	select {
	case data := <-b.send:
		t.Fatalf("b received %s after group deletion", data)
	default:
	}
}
