package ws

import (
	"github.com/google/uuid"
)

// Client → Server events. Frames use the broadcast envelope shape:
// {"event": "...", "data": {...}}.
const (
	EventJoinPrivate = "join_private"
	EventJoinGroup   = "join_group"
	EventLeave       = "leave"
	EventPing        = "ping"
)

// Server → Client control events. Message events come from the broker.
const (
	EventJoined = "joined"
	EventLeft   = "left"
	EventPong   = "pong"
	EventError  = "error"
)

type JoinPrivatePayload struct {
	UserID uuid.UUID `json:"userId"`
}

type JoinGroupPayload struct {
	GroupID uuid.UUID `json:"groupId"`
}

type ChannelPayload struct {
	Channel string `json:"channel"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
