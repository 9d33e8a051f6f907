// Package broadcast turns committed writes into live events. Events are
// addressed by topic string and carried between instances by a Broker.
package broadcast

import (
	"strings"

	"github.com/google/uuid"
	"github.com/vedran77/campuschat/internal/domain"
)

const (
	userPrefix    = "user:"
	privatePrefix = "private:"
	groupPrefix   = "group:"
)

// UserTopic reaches every connection of one user.
func UserTopic(id uuid.UUID) string {
	return userPrefix + id.String()
}

// PairTopic is the private thread between a and b. Argument order does not
// matter.
func PairTopic(a, b uuid.UUID) string {
	lo, hi := a.String(), b.String()
	if hi < lo {
		lo, hi = hi, lo
	}
	return privatePrefix + lo + ":" + hi
}

func GroupTopic(id uuid.UUID) string {
	return groupPrefix + id.String()
}

// ThreadTopic returns the topic msg is published on.
func ThreadTopic(msg *domain.Message) string {
	if msg.GroupID != nil {
		return GroupTopic(*msg.GroupID)
	}
	return PairTopic(msg.SenderID, *msg.ReceiverID)
}

// PairMembers parses a private topic back into its two user ids.
func PairMembers(topic string) (uuid.UUID, uuid.UUID, bool) {
	rest, ok := strings.CutPrefix(topic, privatePrefix)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	lo, hi, ok := strings.Cut(rest, ":")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	a, err := uuid.Parse(lo)
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	b, err := uuid.Parse(hi)
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	return a, b, true
}

// GroupID parses a group topic.
func GroupID(topic string) (uuid.UUID, bool) {
	rest, ok := strings.CutPrefix(topic, groupPrefix)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(rest)
	return id, err == nil
}
