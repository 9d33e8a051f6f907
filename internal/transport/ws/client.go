package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/campuschat/internal/broadcast"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	checkTimeout   = 5 * time.Second
	maxMessageSize = 4096
	sendBufSize    = 256
)

// MembershipChecker authorises group subscriptions.
type MembershipChecker interface {
	IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
}

// Client represents a single WebSocket connection.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	userID  uuid.UUID
	members MembershipChecker
	log     *zap.Logger

	// topics this client listens to. Always holds the user's own topic.
	topics map[string]struct{}
	mu     sync.RWMutex

	send   chan []byte
	sendMu sync.Mutex
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, members MembershipChecker, log *zap.Logger) *Client {
	c := &Client{
		hub:     hub,
		conn:    conn,
		userID:  userID,
		members: members,
		log:     log,
		topics:  make(map[string]struct{}),
		send:    make(chan []byte, sendBufSize),
	}
	c.Subscribe(broadcast.UserTopic(userID))
	return c
}

func (c *Client) IsSubscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.topics[topic]
	return ok
}

func (c *Client) Subscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics[topic] = struct{}{}
}

func (c *Client) Unsubscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.topics, topic)
}

// trySend queues data without blocking. False means the buffer is full or
// the client is closed.
func (c *Client) trySend(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump reads frames from the socket until it fails, then unregisters.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()
	c.conn.SetReadLimit(maxMessageSize)

	for {
		var frame broadcast.Envelope
		err := wsjson.Read(context.Background(), c.conn, &frame)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				c.log.Debug("client closed connection", zap.Stringer("user", c.userID))
			} else {
				c.log.Debug("read error", zap.Stringer("user", c.userID), zap.Error(err))
			}
			return
		}

		c.handleEvent(&frame)
	}
}

// WritePump writes queued frames and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.log.Debug("write error", zap.Stringer("user", c.userID), zap.Error(err))
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				c.log.Debug("ping error", zap.Stringer("user", c.userID), zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) handleEvent(frame *broadcast.Envelope) {
	switch frame.Event {
	case EventJoinPrivate:
		var p JoinPrivatePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil || p.UserID == uuid.Nil {
			c.sendError("INVALID_PAYLOAD", "join_private requires userId")
			return
		}
		topic := broadcast.PairTopic(c.userID, p.UserID)
		c.Subscribe(topic)
		c.reply(EventJoined, topic)

	case EventJoinGroup:
		var p JoinGroupPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil || p.GroupID == uuid.Nil {
			c.sendError("INVALID_PAYLOAD", "join_group requires groupId")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		ok, err := c.members.IsMember(ctx, p.GroupID, c.userID)
		cancel()
		if err != nil {
			c.log.Error("membership check failed", zap.Stringer("group", p.GroupID), zap.Error(err))
			c.sendError("INTERNAL", "could not verify membership")
			return
		}
		if !ok {
			c.sendError("NOT_MEMBER", "You are not a member of this group")
			return
		}
		topic := broadcast.GroupTopic(p.GroupID)
		c.Subscribe(topic)
		c.reply(EventJoined, topic)

	case EventLeave:
		var p ChannelPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil || p.Channel == "" {
			c.sendError("INVALID_PAYLOAD", "leave requires channel")
			return
		}
		if !c.leavable(p.Channel) {
			c.sendError("INVALID_CHANNEL", "cannot leave channel "+p.Channel)
			return
		}
		c.Unsubscribe(p.Channel)
		c.reply(EventLeft, p.Channel)

	case EventPing:
		c.reply(EventPong, "")

	default:
		c.sendError("UNKNOWN_EVENT", "unknown event type: "+frame.Event)
	}
}

// leavable reports whether topic is a private thread of this user or a
// group topic. The user's own topic is never leavable.
func (c *Client) leavable(topic string) bool {
	if a, b, ok := broadcast.PairMembers(topic); ok {
		return a == c.userID || b == c.userID
	}
	_, ok := broadcast.GroupID(topic)
	return ok
}

func (c *Client) reply(event, topic string) {
	var payload any
	if topic != "" {
		payload = ChannelPayload{Channel: topic}
	}
	c.sendEnvelope(event, topic, payload)
}

func (c *Client) sendError(code, message string) {
	c.sendEnvelope(EventError, "", ErrorPayload{Code: code, Message: message})
}

func (c *Client) sendEnvelope(event, topic string, payload any) {
	env, err := broadcast.NewEnvelope(event, topic, payload)
	if err != nil {
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	c.trySend(data)
}
