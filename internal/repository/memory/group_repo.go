package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/campuschat/internal/domain"
	"github.com/vedran77/campuschat/internal/repository"
)

type GroupRepo struct {
	store *Store
}

func NewGroupRepo(store *Store) *GroupRepo {
	return &GroupRepo{store: store}
}

func (r *GroupRepo) Create(_ context.Context, g *domain.Group, creator *domain.GroupMember) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.ID] = *g
	s.members[memberKey{creator.GroupID, creator.UserID}] = *creator
	return nil
}

func (r *GroupRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Group, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (r *GroupRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Group, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var groups []domain.Group
	for id, g := range s.groups {
		if s.isActiveMember(id, userID) {
			groups = append(groups, g)
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].UpdatedAt.After(groups[j].UpdatedAt)
	})
	return groups, nil
}

func (r *GroupRepo) GetMember(_ context.Context, groupID, userID uuid.UUID) (*domain.GroupMember, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberKey{groupID, userID}]
	if !ok {
		return nil, nil
	}
	m = s.memberWithUser(m)
	return &m, nil
}

func (r *GroupRepo) ListMembers(_ context.Context, groupID uuid.UUID) ([]domain.GroupMember, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var members []domain.GroupMember
	for k, m := range s.members {
		if k.groupID == groupID && m.Status == domain.MemberActive {
			members = append(members, s.memberWithUser(m))
		}
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Role != members[j].Role {
			return members[i].Role == domain.RoleAdmin
		}
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})
	return members, nil
}

func (r *GroupRepo) Stats(_ context.Context, groupID uuid.UUID, now time.Time) (*domain.GroupStats, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[groupID]
	if !ok {
		return nil, nil
	}
	st := &domain.GroupStats{GroupID: groupID, MemberCount: g.MemberCount}
	weekAgo := now.Add(-7 * 24 * time.Hour)
	dayAgo := now.Add(-24 * time.Hour)
	for _, sm := range s.messages {
		m := sm.msg
		if m.GroupID == nil || *m.GroupID != groupID {
			continue
		}
		st.TotalMessages++
		if !m.CreatedAt.Before(weekAgo) {
			st.Last7Days++
		}
		if !m.CreatedAt.Before(dayAgo) {
			st.Last24Hours++
		}
	}
	return st, nil
}

// WithinGroupTx serialises writers of one group with a per-group mutex and
// restores the group and its membership rows if fn fails.
func (r *GroupRepo) WithinGroupTx(ctx context.Context, groupID uuid.UUID, fn func(tx repository.GroupTx) error) error {
	s := r.store
	lock := s.groupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	g, ok := s.groups[groupID]
	snapshot := make(map[memberKey]domain.GroupMember)
	for k, m := range s.members {
		if k.groupID == groupID {
			snapshot[k] = m
		}
	}
	s.mu.RUnlock()
	if !ok {
		return domain.ErrGroupNotFound
	}

	current := g
	if err := fn(&groupTx{store: s, group: &current}); err != nil {
		s.mu.Lock()
		s.groups[groupID] = g
		for k := range s.members {
			if k.groupID == groupID {
				delete(s.members, k)
			}
		}
		for k, m := range snapshot {
			s.members[k] = m
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

type groupTx struct {
	store *Store
	group *domain.Group
}

func (t *groupTx) Group() *domain.Group {
	return t.group
}

func (t *groupTx) GetMember(_ context.Context, userID uuid.UUID) (*domain.GroupMember, error) {
	s := t.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberKey{t.group.ID, userID}]
	if !ok {
		return nil, nil
	}
	m = s.memberWithUser(m)
	return &m, nil
}

func (t *groupTx) UpsertMember(_ context.Context, userID uuid.UUID, role domain.Role, at time.Time) (bool, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey{t.group.ID, userID}
	if m, ok := s.members[key]; ok && m.Status == domain.MemberActive {
		return false, nil
	}
	s.members[key] = domain.GroupMember{
		GroupID:  t.group.ID,
		UserID:   userID,
		Role:     role,
		Status:   domain.MemberActive,
		JoinedAt: at,
	}
	return true, nil
}

// activeAdmins counts ACTIVE admins of the locked group. Caller holds s.mu.
func (t *groupTx) activeAdmins() int {
	n := 0
	for k, m := range t.store.members {
		if k.groupID == t.group.ID && m.Status == domain.MemberActive && m.Role == domain.RoleAdmin {
			n++
		}
	}
	return n
}

func (t *groupTx) DeactivateMember(_ context.Context, userID uuid.UUID, at time.Time) (bool, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey{t.group.ID, userID}
	m, ok := s.members[key]
	if !ok || m.Status != domain.MemberActive {
		return false, nil
	}
	if m.Role == domain.RoleAdmin && t.activeAdmins() <= 1 {
		return false, nil
	}
	leftAt := at
	m.Status = domain.MemberLeft
	m.LeftAt = &leftAt
	s.members[key] = m
	return true, nil
}

func (t *groupTx) SetRole(_ context.Context, userID uuid.UUID, role domain.Role) (bool, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey{t.group.ID, userID}
	m, ok := s.members[key]
	if !ok || m.Status != domain.MemberActive {
		return false, nil
	}
	if role != domain.RoleAdmin && m.Role == domain.RoleAdmin && t.activeAdmins() <= 1 {
		return false, nil
	}
	m.Role = role
	s.members[key] = m
	return true, nil
}

func (t *groupTx) Update(_ context.Context, g *domain.Group) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.ID] = *g
	t.group = g
	return nil
}

func (t *groupTx) AdjustMemberCount(_ context.Context, delta int) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.groups[t.group.ID]
	g.MemberCount += delta
	g.UpdatedAt = time.Now()
	s.groups[g.ID] = g
	t.group.MemberCount = g.MemberCount
	return nil
}
