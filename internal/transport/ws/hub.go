package ws

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/vedran77/campuschat/internal/broadcast"
	"github.com/vedran77/campuschat/internal/metrics"
	"go.uber.org/zap"
)

// Hub tracks connected clients and hands each broker envelope to the
// clients subscribed to its topic. One user may hold several connections.
type Hub struct {
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	deliver    chan *delivery
	done       chan struct{}

	log *zap.Logger
}

type delivery struct {
	topic  string
	data   []byte
	revoke *revocation
}

// revocation removes topic from the subscriptions of userID's clients, or
// of every client when userID is nil. It applies after fan-out.
type revocation struct {
	topic  string
	userID uuid.UUID
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan *delivery, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run is the hub event loop. It returns when ctx is done, after closing
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			metrics.WSConnections.Inc()
			h.log.Debug("client connected", zap.Stringer("user", client.userID), zap.Int("total", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.log.Debug("client disconnected", zap.Stringer("user", client.userID), zap.Int("total", len(h.clients)))
			}

		case d := <-h.deliver:
			for client := range h.clients {
				if !client.IsSubscribed(d.topic) {
					continue
				}
				if !client.trySend(d.data) {
					// Buffer full: drop the slow client, it resyncs over REST.
					h.log.Warn("dropping slow client", zap.Stringer("user", client.userID))
					h.drop(client)
				}
			}
			if r := d.revoke; r != nil {
				for client := range h.clients {
					if r.userID == uuid.Nil || client.userID == r.userID {
						client.Unsubscribe(r.topic)
					}
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	client.closeSend()
	metrics.WSConnections.Dec()
}

// Deliver queues env for local subscribers of env.Channel. It is the
// broker subscription handler.
func (h *Hub) Deliver(env *broadcast.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.log.Error("marshal envelope", zap.Error(err))
		return
	}
	d := &delivery{topic: env.Channel, data: data, revoke: h.revocationFor(env)}
	select {
	case h.deliver <- d:
	case <-h.done:
	}
}

// revocationFor maps membership events to the group subscription they end.
func (h *Hub) revocationFor(env *broadcast.Envelope) *revocation {
	switch env.Event {
	case broadcast.EventMemberRemoved:
		var p broadcast.MemberRemovedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.UserID == uuid.Nil {
			h.log.Warn("malformed member_removed payload", zap.String("channel", env.Channel), zap.Error(err))
			return nil
		}
		return &revocation{topic: broadcast.GroupTopic(p.GroupID), userID: p.UserID}
	case broadcast.EventGroupDeleted:
		id, ok := broadcast.GroupID(env.Channel)
		if !ok {
			h.log.Warn("group_deleted on non-group channel", zap.String("channel", env.Channel))
			return nil
		}
		return &revocation{topic: broadcast.GroupTopic(id)}
	}
	return nil
}

// Register adds a client to the hub. It reports false when the hub has
// stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
