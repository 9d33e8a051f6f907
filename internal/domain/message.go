package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageStatus string

const (
	MessageSent MessageStatus = "SENT"
	MessageRead MessageStatus = "READ"
)

// Message is either private (ReceiverID set) or group (GroupID set), never both.
type Message struct {
	ID              uuid.UUID     `json:"id"`
	SenderID        uuid.UUID     `json:"senderId"`
	ReceiverID      *uuid.UUID    `json:"receiverId,omitempty"`
	GroupID         *uuid.UUID    `json:"groupId,omitempty"`
	Content         *string       `json:"content,omitempty"`
	Attachment      *string       `json:"attachment,omitempty"`
	ReplyToID       *uuid.UUID    `json:"replyToId,omitempty"`
	Status          MessageStatus `json:"status"`
	DeletedBySender bool          `json:"deletedBySender"`
	CreatedAt       time.Time     `json:"createdAt"`
	ReadAt          *time.Time    `json:"readAt,omitempty"`
	EditedAt        *time.Time    `json:"editedAt,omitempty"`
	// Joined fields
	SenderUsername      string        `json:"senderUsername,omitempty"`
	SenderDisplayName   string        `json:"senderDisplayName,omitempty"`
	SenderAvatar        *string       `json:"senderAvatar,omitempty"`
	ReceiverUsername    string        `json:"receiverUsername,omitempty"`
	ReceiverDisplayName string        `json:"receiverDisplayName,omitempty"`
	GroupName           string        `json:"groupName,omitempty"`
	ReplyTo             *ReplyPreview `json:"replyTo,omitempty"`
}

// ReplyPreview is the quoted message shown above a reply.
type ReplyPreview struct {
	ID                uuid.UUID `json:"id"`
	SenderID          uuid.UUID `json:"senderId"`
	SenderDisplayName string    `json:"senderDisplayName,omitempty"`
	Content           *string   `json:"content,omitempty"`
	Attachment        *string   `json:"attachment,omitempty"`
}

func (m *Message) IsGroup() bool {
	return m.GroupID != nil
}

// Peer returns the other side of a private message as seen by viewer.
func (m *Message) Peer(viewer uuid.UUID) uuid.UUID {
	if m.ReceiverID == nil {
		return uuid.Nil
	}
	if m.SenderID == viewer {
		return *m.ReceiverID
	}
	return m.SenderID
}

// ReadReceipt is the outcome of a SENT to READ transition for one original sender.
type ReadReceipt struct {
	ReceiverID  uuid.UUID  `json:"receiverId"`
	SenderID    uuid.UUID  `json:"senderId"`
	GroupID     *uuid.UUID `json:"groupId,omitempty"`
	MarkedCount int64      `json:"markedCount"`
}

type UnreadCounts struct {
	Private int64 `json:"private"`
	Group   int64 `json:"group"`
	Total   int64 `json:"total"`
}
