// Package memory implements the repository interfaces on in-process maps.
// It backs the memory db driver and the service and handler tests.
package memory

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/campuschat/internal/domain"
)

type memberKey struct {
	groupID uuid.UUID
	userID  uuid.UUID
}

type storedMessage struct {
	msg domain.Message
	seq uint64
}

// Store holds every table. Repos created from the same Store share state.
type Store struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]domain.User
	groups   map[uuid.UUID]domain.Group
	members  map[memberKey]domain.GroupMember
	messages map[uuid.UUID]*storedMessage
	seq      uint64

	locksMu    sync.Mutex
	groupLocks map[uuid.UUID]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		users:      make(map[uuid.UUID]domain.User),
		groups:     make(map[uuid.UUID]domain.Group),
		members:    make(map[memberKey]domain.GroupMember),
		messages:   make(map[uuid.UUID]*storedMessage),
		groupLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// PutUser inserts or replaces a user. Users are owned by the identity
// service, so this is the only write path.
func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) groupLock(id uuid.UUID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.groupLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.groupLocks[id] = l
	}
	return l
}

// hydrate fills joined fields. Caller holds s.mu.
func (s *Store) hydrate(sm *storedMessage) domain.Message {
	msg := sm.msg
	if u, ok := s.users[msg.SenderID]; ok {
		msg.SenderUsername = u.Username
		msg.SenderDisplayName = u.DisplayName
		msg.SenderAvatar = u.AvatarURL
	}
	if msg.ReceiverID != nil {
		if u, ok := s.users[*msg.ReceiverID]; ok {
			msg.ReceiverUsername = u.Username
			msg.ReceiverDisplayName = u.DisplayName
		}
	}
	if msg.GroupID != nil {
		if g, ok := s.groups[*msg.GroupID]; ok {
			msg.GroupName = g.Name
		}
	}
	if msg.ReplyToID != nil {
		if parent, ok := s.messages[*msg.ReplyToID]; ok {
			msg.ReplyTo = &domain.ReplyPreview{
				ID:                parent.msg.ID,
				SenderID:          parent.msg.SenderID,
				SenderDisplayName: s.users[parent.msg.SenderID].DisplayName,
				Content:           parent.msg.Content,
				Attachment:        parent.msg.Attachment,
			}
		}
	}
	return msg
}

// newestFirst orders by creation time, then insertion order.
func newestFirst(list []*storedMessage) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].msg.CreatedAt.Equal(list[j].msg.CreatedAt) {
			return list[i].msg.CreatedAt.After(list[j].msg.CreatedAt)
		}
		return list[i].seq > list[j].seq
	})
}

func page(list []*storedMessage, limit, offset int) []*storedMessage {
	if offset >= len(list) {
		return nil
	}
	list = list[offset:]
	if limit >= 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}

// isActiveMember reports whether userID is an ACTIVE member of an ACTIVE
// group. Caller holds s.mu.
func (s *Store) isActiveMember(groupID, userID uuid.UUID) bool {
	g, ok := s.groups[groupID]
	if !ok || g.Status != domain.GroupActive {
		return false
	}
	m, ok := s.members[memberKey{groupID, userID}]
	return ok && m.Status == domain.MemberActive
}

func (s *Store) memberWithUser(m domain.GroupMember) domain.GroupMember {
	if u, ok := s.users[m.UserID]; ok {
		m.Username = u.Username
		m.DisplayName = u.DisplayName
		m.AvatarURL = u.AvatarURL
	}
	return m
}
