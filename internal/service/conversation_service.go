package service

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/vedran77/campuschat/internal/domain"
	"github.com/vedran77/campuschat/internal/repository"
)

type ConversationService struct {
	conversationRepo repository.ConversationRepository
}

func NewConversationService(conversationRepo repository.ConversationRepository) *ConversationService {
	return &ConversationService{conversationRepo: conversationRepo}
}

// GetConversations returns the user's inbox: one entry per thread with its
// latest message and unread count, most recent first. Two queries in total,
// independent of the number of threads.
func (s *ConversationService) GetConversations(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	previews, err := s.conversationRepo.LatestPerConversation(ctx, userID)
	if err != nil {
		return nil, err
	}
	unread, err := s.conversationRepo.UnreadByConversation(ctx, userID)
	if err != nil {
		return nil, err
	}
	return mergeConversations(previews, unread), nil
}

func mergeConversations(previews []domain.Conversation, unread map[domain.ConversationKey]int64) []domain.Conversation {
	out := make([]domain.Conversation, 0, len(previews))
	for _, c := range previews {
		c.UnreadCount = unread[c.Key()]
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].LastMessageAt.Equal(out[j].LastMessageAt) {
			return out[i].LastMessageAt.After(out[j].LastMessageAt)
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}
