package broadcast

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/campuschat/internal/domain"
)

const (
	EventNewMessage    = "new_message"
	EventMessageRead   = "message_read"
	EventMessageEdited = "message_edited"
	EventMemberRemoved = "member_removed"
	EventGroupDeleted  = "group_deleted"
)

// Envelope is what travels through the broker and down the socket.
type Envelope struct {
	Event     string          `json:"event"`
	Channel   string          `json:"channel"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"ts"`
}

func NewEnvelope(event, channel string, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Event:     event,
		Channel:   channel,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

type NewMessagePayload struct {
	Type       string          `json:"type"` // "private" | "group"
	Message    *domain.Message `json:"message"`
	SenderID   uuid.UUID       `json:"senderId"`
	ReceiverID *uuid.UUID      `json:"receiverId,omitempty"`
	GroupID    *uuid.UUID      `json:"groupId,omitempty"`
}

type MessageReadPayload struct {
	ReceiverID  uuid.UUID  `json:"receiverId"`
	SenderID    uuid.UUID  `json:"senderId"`
	GroupID     *uuid.UUID `json:"groupId,omitempty"`
	MarkedCount int64      `json:"markedCount"`
}

type MessageEditedPayload struct {
	Message *domain.Message `json:"message"`
}

// MemberRemovedPayload goes to the removed user's topic. Hubs drop that
// user's group subscription when they see it.
type MemberRemovedPayload struct {
	GroupID uuid.UUID `json:"groupId"`
	UserID  uuid.UUID `json:"userId"`
}

type GroupDeletedPayload struct {
	GroupID uuid.UUID `json:"groupId"`
}
