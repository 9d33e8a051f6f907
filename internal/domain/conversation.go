package domain

import (
	"time"

	"github.com/google/uuid"
)

type ConversationKind string

const (
	ConversationPrivate ConversationKind = "private"
	ConversationGroup   ConversationKind = "group"
)

// ConversationKey identifies a thread from one user's point of view: the other
// user for private threads, the group otherwise.
type ConversationKey struct {
	Kind ConversationKind
	ID   uuid.UUID
}

type Conversation struct {
	Kind          ConversationKind `json:"type"`
	ID            uuid.UUID        `json:"id"`
	Name          string           `json:"name"`
	Avatar        *string          `json:"avatar,omitempty"`
	LastMessage   *Message         `json:"lastMessage"`
	UnreadCount   int64            `json:"unreadCount"`
	LastMessageAt time.Time        `json:"lastMessageAt"`
}

func (c *Conversation) Key() ConversationKey {
	return ConversationKey{Kind: c.Kind, ID: c.ID}
}
