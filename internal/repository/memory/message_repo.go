package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/campuschat/internal/domain"
)

type MessageRepo struct {
	store *Store
}

func NewMessageRepo(store *Store) *MessageRepo {
	return &MessageRepo{store: store}
}

func (r *MessageRepo) Create(_ context.Context, msg *domain.Message) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	stored := *msg
	s.messages[msg.ID] = &storedMessage{msg: stored, seq: s.seq}
	return nil
}

func (r *MessageRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Message, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	sm, ok := s.messages[id]
	if !ok {
		return nil, nil
	}
	msg := s.hydrate(sm)
	return &msg, nil
}

func (r *MessageRepo) ListPrivate(_ context.Context, viewerID, otherID uuid.UUID, limit, offset int) ([]domain.Message, error) {
	return r.list(func(m *domain.Message) bool {
		if m.ReceiverID == nil {
			return false
		}
		between := (m.SenderID == viewerID && *m.ReceiverID == otherID) ||
			(m.SenderID == otherID && *m.ReceiverID == viewerID)
		return between && !(m.SenderID == viewerID && m.DeletedBySender)
	}, limit, offset), nil
}

func (r *MessageRepo) ListGroup(_ context.Context, groupID, viewerID uuid.UUID, limit, offset int) ([]domain.Message, error) {
	return r.list(func(m *domain.Message) bool {
		return m.GroupID != nil && *m.GroupID == groupID &&
			!(m.SenderID == viewerID && m.DeletedBySender)
	}, limit, offset), nil
}

func (r *MessageRepo) list(match func(*domain.Message) bool, limit, offset int) []domain.Message {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found []*storedMessage
	for _, sm := range s.messages {
		if match(&sm.msg) {
			found = append(found, sm)
		}
	}
	newestFirst(found)

	var out []domain.Message
	for _, sm := range page(found, limit, offset) {
		out = append(out, s.hydrate(sm))
	}
	return out
}

func (r *MessageRepo) UpdateContent(_ context.Context, id uuid.UUID, content string, editedAt time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if sm, ok := s.messages[id]; ok {
		sm.msg.Content = &content
		sm.msg.EditedAt = &editedAt
	}
	return nil
}

func (r *MessageRepo) MarkDeletedBySender(_ context.Context, id uuid.UUID) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if sm, ok := s.messages[id]; ok {
		sm.msg.DeletedBySender = true
	}
	return nil
}

func (r *MessageRepo) MarkPrivateRead(_ context.Context, receiverID, senderID uuid.UUID, at time.Time) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, sm := range s.messages {
		m := &sm.msg
		if m.ReceiverID != nil && *m.ReceiverID == receiverID && m.SenderID == senderID && m.Status == domain.MessageSent {
			readAt := at
			m.Status = domain.MessageRead
			m.ReadAt = &readAt
			n++
		}
	}
	return n, nil
}

func (r *MessageRepo) MarkGroupRead(_ context.Context, receiverID, groupID uuid.UUID, at time.Time) ([]domain.ReadReceipt, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	perSender := make(map[uuid.UUID]int64)
	for _, sm := range s.messages {
		m := &sm.msg
		if m.GroupID != nil && *m.GroupID == groupID && m.SenderID != receiverID && m.Status == domain.MessageSent {
			readAt := at
			m.Status = domain.MessageRead
			m.ReadAt = &readAt
			perSender[m.SenderID]++
		}
	}

	var receipts []domain.ReadReceipt
	for sender, n := range perSender {
		gid := groupID
		receipts = append(receipts, domain.ReadReceipt{
			ReceiverID:  receiverID,
			SenderID:    sender,
			GroupID:     &gid,
			MarkedCount: n,
		})
	}
	sort.Slice(receipts, func(i, j int) bool {
		return receipts[i].SenderID.String() < receipts[j].SenderID.String()
	})
	return receipts, nil
}

func (r *MessageRepo) CountUnread(_ context.Context, userID uuid.UUID) (domain.UnreadCounts, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c domain.UnreadCounts
	for _, sm := range s.messages {
		m := &sm.msg
		if m.Status != domain.MessageSent {
			continue
		}
		switch {
		case m.ReceiverID != nil && *m.ReceiverID == userID:
			c.Private++
		case m.GroupID != nil && m.SenderID != userID && s.isActiveMember(*m.GroupID, userID):
			c.Group++
		}
	}
	c.Total = c.Private + c.Group
	return c, nil
}

func (r *MessageRepo) HardDelete(_ context.Context, id uuid.UUID) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id]; !ok {
		return false, nil
	}
	for _, sm := range s.messages {
		if sm.msg.ReplyToID != nil && *sm.msg.ReplyToID == id {
			sm.msg.ReplyToID = nil
		}
	}
	delete(s.messages, id)
	return true, nil
}
