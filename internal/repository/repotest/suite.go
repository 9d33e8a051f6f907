// Package repotest holds behaviour checks shared by every repository
// backend.
package repotest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/campuschat/internal/domain"
	"github.com/vedran77/campuschat/internal/repository"
)

// Backend is one fresh, isolated set of repositories.
type Backend struct {
	Users         repository.UserRepository
	Messages      repository.MessageRepository
	Groups        repository.GroupRepository
	Conversations repository.ConversationRepository
	// PutUser seeds the identity table.
	PutUser func(t *testing.T, u domain.User)
}

type env struct {
	*Backend
	t    *testing.T
	ctx  context.Context
	base time.Time
	tick int
}

func (e *env) user(name string) uuid.UUID {
	e.t.Helper()
	id := uuid.New()
	e.PutUser(e.t, domain.User{
		ID:          id,
		Username:    name + "_" + id.String()[:8],
		DisplayName: name,
		CreatedAt:   e.base,
	})
	return id
}

// next returns strictly increasing timestamps with microsecond precision.
func (e *env) next() time.Time {
	e.tick++
	return e.base.Add(time.Duration(e.tick) * time.Millisecond)
}

func (e *env) group(admin uuid.UUID, members ...uuid.UUID) uuid.UUID {
	e.t.Helper()
	now := e.next()
	g := &domain.Group{
		ID:          uuid.New(),
		Name:        "Linear algebra",
		MemberCount: 1,
		Status:      domain.GroupActive,
		CreatedBy:   admin,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	creator := &domain.GroupMember{GroupID: g.ID, UserID: admin, Role: domain.RoleAdmin, Status: domain.MemberActive, JoinedAt: now}
	if err := e.Groups.Create(e.ctx, g, creator); err != nil {
		e.t.Fatalf("create group: %v", err)
	}
	for _, m := range members {
		err := e.Groups.WithinGroupTx(e.ctx, g.ID, func(tx repository.GroupTx) error {
			if _, err := tx.UpsertMember(e.ctx, m, domain.RoleMember, e.next()); err != nil {
				return err
			}
			return tx.AdjustMemberCount(e.ctx, 1)
		})
		if err != nil {
			e.t.Fatalf("add member: %v", err)
		}
	}
	return g.ID
}

func (e *env) send(from uuid.UUID, to, group *uuid.UUID, text string, replyTo *uuid.UUID) *domain.Message {
	e.t.Helper()
	msg := &domain.Message{
		ID:         uuid.New(),
		SenderID:   from,
		ReceiverID: to,
		GroupID:    group,
		Content:    &text,
		ReplyToID:  replyTo,
		Status:     domain.MessageSent,
		CreatedAt:  e.next(),
	}
	if err := e.Messages.Create(e.ctx, msg); err != nil {
		e.t.Fatalf("create message: %v", err)
	}
	return msg
}

// Run executes the shared checks, each against a fresh backend.
func Run(t *testing.T, newBackend func(t *testing.T) *Backend) {
	cases := []struct {
		name string
		fn   func(e *env)
	}{
		{"MessageHydration", testMessageHydration},
		{"PrivateListOrderAndSoftDelete", testPrivateListOrderAndSoftDelete},
		{"ReadTransitions", testReadTransitions},
		{"UnreadCounts", testUnreadCounts},
		{"UnreadSkipsDeletedGroups", testUnreadSkipsDeletedGroups},
		{"HardDeleteKeepsReplies", testHardDeleteKeepsReplies},
		{"MembershipGuards", testMembershipGuards},
		{"GroupTxRollback", testGroupTxRollback},
		{"Conversations", testConversations},
		{"Stats", testStats},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(&env{
				Backend: newBackend(t),
				t:       t,
				ctx:     context.Background(),
				base:    time.Now().UTC().Truncate(time.Second),
			})
		})
	}
}

func testMessageHydration(e *env) {
	alice, bob := e.user("Alice"), e.user("Bob")
	first := e.send(alice, &bob, nil, "is the bike still for sale?", nil)
	reply := e.send(bob, &alice, nil, "yes", &first.ID)

	got, err := e.Messages.GetByID(e.ctx, reply.ID)
	if err != nil {
		e.t.Fatal(err)
	}
	if got.SenderDisplayName != "Bob" || got.ReceiverDisplayName != "Alice" {
		e.t.Fatalf("hydration: sender %q receiver %q", got.SenderDisplayName, got.ReceiverDisplayName)
	}
	if got.ReplyTo == nil || got.ReplyTo.ID != first.ID || got.ReplyTo.SenderDisplayName != "Alice" {
		e.t.Fatalf("reply preview = %+v", got.ReplyTo)
	}

	u, err := e.Users.GetByID(e.ctx, alice)
	if err != nil || u == nil || u.DisplayName != "Alice" {
		e.t.Fatalf("user = %+v, %v", u, err)
	}

	missing, err := e.Messages.GetByID(e.ctx, uuid.New())
	if err != nil || missing != nil {
		e.t.Fatalf("missing message = %v, %v", missing, err)
	}
}

func testPrivateListOrderAndSoftDelete(e *env) {
	alice, bob := e.user("Alice"), e.user("Bob")
	m1 := e.send(alice, &bob, nil, "one", nil)
	m2 := e.send(bob, &alice, nil, "two", nil)
	m3 := e.send(alice, &bob, nil, "three", nil)

	list, err := e.Messages.ListPrivate(e.ctx, alice, bob, 10, 0)
	if err != nil {
		e.t.Fatal(err)
	}
	if len(list) != 3 || list[0].ID != m3.ID || list[2].ID != m1.ID {
		e.t.Fatalf("order = %v", ids(list))
	}

	page, _ := e.Messages.ListPrivate(e.ctx, alice, bob, 1, 1)
	if len(page) != 1 || page[0].ID != m2.ID {
		e.t.Fatalf("page = %v", ids(page))
	}

	if err := e.Messages.MarkDeletedBySender(e.ctx, m3.ID); err != nil {
		e.t.Fatal(err)
	}
	forAlice, _ := e.Messages.ListPrivate(e.ctx, alice, bob, 10, 0)
	forBob, _ := e.Messages.ListPrivate(e.ctx, bob, alice, 10, 0)
	if len(forAlice) != 2 || len(forBob) != 3 {
		e.t.Fatalf("after soft delete: alice %d bob %d", len(forAlice), len(forBob))
	}
}

func testReadTransitions(e *env) {
	alice, bob, carol := e.user("Alice"), e.user("Bob"), e.user("Carol")
	e.send(alice, &bob, nil, "a", nil)
	e.send(alice, &bob, nil, "b", nil)

	n, err := e.Messages.MarkPrivateRead(e.ctx, bob, alice, e.next())
	if err != nil || n != 2 {
		e.t.Fatalf("first mark = %d, %v", n, err)
	}
	n, _ = e.Messages.MarkPrivateRead(e.ctx, bob, alice, e.next())
	if n != 0 {
		e.t.Fatalf("second mark = %d, want 0", n)
	}

	groupID := e.group(alice, bob, carol)
	e.send(alice, nil, &groupID, "g1", nil)
	e.send(carol, nil, &groupID, "g2", nil)
	e.send(carol, nil, &groupID, "g3", nil)
	e.send(bob, nil, &groupID, "own", nil)

	receipts, err := e.Messages.MarkGroupRead(e.ctx, bob, groupID, e.next())
	if err != nil {
		e.t.Fatal(err)
	}
	perSender := map[uuid.UUID]int64{}
	for _, r := range receipts {
		if r.GroupID == nil || *r.GroupID != groupID || r.ReceiverID != bob {
			e.t.Fatalf("receipt = %+v", r)
		}
		perSender[r.SenderID] = r.MarkedCount
	}
	if len(perSender) != 2 || perSender[alice] != 1 || perSender[carol] != 2 {
		e.t.Fatalf("receipts = %v", perSender)
	}
}

func testUnreadCounts(e *env) {
	alice, bob, carol := e.user("Alice"), e.user("Bob"), e.user("Carol")
	groupID := e.group(alice, bob)
	e.send(alice, &bob, nil, "p", nil)
	e.send(alice, nil, &groupID, "g", nil)
	e.send(bob, nil, &groupID, "mine", nil)
	e.send(carol, &alice, nil, "x", nil)

	c, err := e.Messages.CountUnread(e.ctx, bob)
	if err != nil {
		e.t.Fatal(err)
	}
	if c.Private != 1 || c.Group != 1 || c.Total != 2 {
		e.t.Fatalf("counts = %+v", c)
	}
}

func testUnreadSkipsDeletedGroups(e *env) {
	alice, bob := e.user("Alice"), e.user("Bob")
	groupID := e.group(alice, bob)
	e.send(alice, nil, &groupID, "before delete", nil)
	e.send(alice, &bob, nil, "p", nil)

	err := e.Groups.WithinGroupTx(e.ctx, groupID, func(tx repository.GroupTx) error {
		g := *tx.Group()
		g.Status = domain.GroupDeleted
		g.UpdatedAt = e.next()
		return tx.Update(e.ctx, &g)
	})
	if err != nil {
		e.t.Fatal(err)
	}

	c, err := e.Messages.CountUnread(e.ctx, bob)
	if err != nil {
		e.t.Fatal(err)
	}
	if c.Private != 1 || c.Group != 0 || c.Total != 1 {
		e.t.Fatalf("counts = %+v", c)
	}

	byConv, err := e.Conversations.UnreadByConversation(e.ctx, bob)
	if err != nil {
		e.t.Fatal(err)
	}
	if n, ok := byConv[domain.ConversationKey{Kind: domain.ConversationGroup, ID: groupID}]; ok {
		e.t.Fatalf("deleted group still counted: %d", n)
	}
	if byConv[domain.ConversationKey{Kind: domain.ConversationPrivate, ID: alice}] != 1 {
		e.t.Fatalf("private counts = %v", byConv)
	}
}

func testHardDeleteKeepsReplies(e *env) {
	alice, bob := e.user("Alice"), e.user("Bob")
	parent := e.send(alice, &bob, nil, "parent", nil)
	child := e.send(bob, &alice, nil, "child", &parent.ID)

	deleted, err := e.Messages.HardDelete(e.ctx, parent.ID)
	if err != nil || !deleted {
		e.t.Fatalf("hard delete = %v, %v", deleted, err)
	}
	again, _ := e.Messages.HardDelete(e.ctx, parent.ID)
	if again {
		e.t.Fatal("second hard delete reported a row")
	}

	got, err := e.Messages.GetByID(e.ctx, child.ID)
	if err != nil || got == nil {
		e.t.Fatalf("child = %v, %v", got, err)
	}
	if got.ReplyToID != nil || got.ReplyTo != nil {
		e.t.Fatalf("dangling reply reference: %+v", got)
	}
}

func testMembershipGuards(e *env) {
	admin, member := e.user("Admin"), e.user("Member")
	groupID := e.group(admin, member)

	err := e.Groups.WithinGroupTx(e.ctx, groupID, func(tx repository.GroupTx) error {
		added, err := tx.UpsertMember(e.ctx, member, domain.RoleMember, e.next())
		if err != nil || added {
			e.t.Fatalf("re-adding active member = %v, %v", added, err)
		}
		ok, err := tx.DeactivateMember(e.ctx, admin, e.next())
		if err != nil || ok {
			e.t.Fatalf("removing sole admin = %v, %v", ok, err)
		}
		ok, err = tx.SetRole(e.ctx, admin, domain.RoleMember)
		if err != nil || ok {
			e.t.Fatalf("demoting sole admin = %v, %v", ok, err)
		}
		ok, err = tx.DeactivateMember(e.ctx, member, e.next())
		if err != nil || !ok {
			e.t.Fatalf("removing member = %v, %v", ok, err)
		}
		return tx.AdjustMemberCount(e.ctx, -1)
	})
	if err != nil {
		e.t.Fatal(err)
	}

	left, _ := e.Groups.GetMember(e.ctx, groupID, member)
	if left.Status != domain.MemberLeft || left.LeftAt == nil {
		e.t.Fatalf("left member = %+v", left)
	}

	// Rejoin revives the row.
	err = e.Groups.WithinGroupTx(e.ctx, groupID, func(tx repository.GroupTx) error {
		added, err := tx.UpsertMember(e.ctx, member, domain.RoleMember, e.next())
		if err != nil || !added {
			e.t.Fatalf("rejoin = %v, %v", added, err)
		}
		return nil
	})
	if err != nil {
		e.t.Fatal(err)
	}
	back, _ := e.Groups.GetMember(e.ctx, groupID, member)
	if !back.IsActive() || back.LeftAt != nil {
		e.t.Fatalf("rejoined member = %+v", back)
	}

	if err := e.Groups.WithinGroupTx(e.ctx, uuid.New(), func(repository.GroupTx) error { return nil }); !errors.Is(err, domain.ErrGroupNotFound) {
		e.t.Fatalf("missing group tx err = %v", err)
	}
}

func testGroupTxRollback(e *env) {
	admin, member := e.user("Admin"), e.user("Member")
	groupID := e.group(admin)
	boom := errors.New("boom")

	err := e.Groups.WithinGroupTx(e.ctx, groupID, func(tx repository.GroupTx) error {
		if _, err := tx.UpsertMember(e.ctx, member, domain.RoleMember, e.next()); err != nil {
			return err
		}
		if err := tx.AdjustMemberCount(e.ctx, 1); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		e.t.Fatalf("err = %v, want boom", err)
	}

	m, _ := e.Groups.GetMember(e.ctx, groupID, member)
	if m != nil {
		e.t.Fatalf("rolled back member persisted: %+v", m)
	}
	g, _ := e.Groups.GetByID(e.ctx, groupID)
	if g.MemberCount != 1 {
		e.t.Fatalf("member count = %d, want 1", g.MemberCount)
	}
}

func testConversations(e *env) {
	alice, bob, carol := e.user("Alice"), e.user("Bob"), e.user("Carol")
	groupID := e.group(carol, alice)

	e.send(bob, &alice, nil, "hi", nil)
	latestPrivate := e.send(bob, &alice, nil, "still there?", nil)
	latestGroup := e.send(carol, nil, &groupID, "meeting at 5", nil)

	convs, err := e.Conversations.LatestPerConversation(e.ctx, alice)
	if err != nil {
		e.t.Fatal(err)
	}
	byKey := map[domain.ConversationKey]domain.Conversation{}
	for _, c := range convs {
		byKey[c.Key()] = c
	}
	private := byKey[domain.ConversationKey{Kind: domain.ConversationPrivate, ID: bob}]
	group := byKey[domain.ConversationKey{Kind: domain.ConversationGroup, ID: groupID}]
	if len(convs) != 2 || private.LastMessage == nil || group.LastMessage == nil {
		e.t.Fatalf("conversations = %+v", convs)
	}
	if private.LastMessage.ID != latestPrivate.ID || private.Name != "Bob" {
		e.t.Fatalf("private = %+v", private)
	}
	if group.LastMessage.ID != latestGroup.ID || group.Name != "Linear algebra" {
		e.t.Fatalf("group = %+v", group)
	}

	unread, err := e.Conversations.UnreadByConversation(e.ctx, alice)
	if err != nil {
		e.t.Fatal(err)
	}
	if unread[private.Key()] != 2 || unread[group.Key()] != 1 {
		e.t.Fatalf("unread = %v", unread)
	}
}

func testStats(e *env) {
	admin, member := e.user("Admin"), e.user("Member")
	groupID := e.group(admin, member)

	old := &domain.Message{
		ID: uuid.New(), SenderID: admin, GroupID: &groupID, Content: strPtr("old"),
		Status: domain.MessageSent, CreatedAt: e.base.Add(-10 * 24 * time.Hour),
	}
	if err := e.Messages.Create(e.ctx, old); err != nil {
		e.t.Fatal(err)
	}
	e.send(member, nil, &groupID, "new", nil)

	st, err := e.Groups.Stats(e.ctx, groupID, e.next())
	if err != nil {
		e.t.Fatal(err)
	}
	if st.TotalMessages != 2 || st.Last7Days != 1 || st.Last24Hours != 1 || st.MemberCount != 2 {
		e.t.Fatalf("stats = %+v", st)
	}
}

func strPtr(s string) *string { return &s }

func ids(list []domain.Message) []uuid.UUID {
	out := make([]uuid.UUID, len(list))
	for i, m := range list {
		out[i] = m.ID
	}
	return out
}
