package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/vedran77/campuschat/internal/domain"
)

type ConversationRepo struct {
	store *Store
}

func NewConversationRepo(store *Store) *ConversationRepo {
	return &ConversationRepo{store: store}
}

// threadKey returns the thread m belongs to from userID's point of view and
// whether userID can see it at all. Caller holds s.mu.
func (s *Store) threadKey(m *domain.Message, userID uuid.UUID) (domain.ConversationKey, bool) {
	if m.GroupID != nil {
		return domain.ConversationKey{Kind: domain.ConversationGroup, ID: *m.GroupID}, s.isActiveMember(*m.GroupID, userID)
	}
	if m.SenderID != userID && *m.ReceiverID != userID {
		return domain.ConversationKey{}, false
	}
	return domain.ConversationKey{Kind: domain.ConversationPrivate, ID: m.Peer(userID)}, true
}

func (r *ConversationRepo) LatestPerConversation(_ context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[domain.ConversationKey]*storedMessage)
	for _, sm := range s.messages {
		m := &sm.msg
		if m.SenderID == userID && m.DeletedBySender {
			continue
		}
		key, ok := s.threadKey(m, userID)
		if !ok {
			continue
		}
		cur, seen := latest[key]
		if !seen || m.CreatedAt.After(cur.msg.CreatedAt) ||
			(m.CreatedAt.Equal(cur.msg.CreatedAt) && sm.seq > cur.seq) {
			latest[key] = sm
		}
	}

	var convs []domain.Conversation
	for key, sm := range latest {
		msg := s.hydrate(sm)
		c := domain.Conversation{
			Kind:          key.Kind,
			ID:            key.ID,
			LastMessage:   &msg,
			LastMessageAt: msg.CreatedAt,
		}
		if key.Kind == domain.ConversationGroup {
			g := s.groups[key.ID]
			c.Name = g.Name
			c.Avatar = g.Avatar
		} else if u, ok := s.users[key.ID]; ok {
			c.Name = u.DisplayName
			c.Avatar = u.AvatarURL
		}
		convs = append(convs, c)
	}
	return convs, nil
}

func (r *ConversationRepo) UnreadByConversation(_ context.Context, userID uuid.UUID) (map[domain.ConversationKey]int64, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.ConversationKey]int64)
	for _, sm := range s.messages {
		m := &sm.msg
		if m.Status != domain.MessageSent {
			continue
		}
		switch {
		case m.ReceiverID != nil && *m.ReceiverID == userID:
			counts[domain.ConversationKey{Kind: domain.ConversationPrivate, ID: m.SenderID}]++
		case m.GroupID != nil && m.SenderID != userID && s.isActiveMember(*m.GroupID, userID):
			counts[domain.ConversationKey{Kind: domain.ConversationGroup, ID: *m.GroupID}]++
		}
	}
	return counts, nil
}
