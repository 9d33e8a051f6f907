package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/campuschat/internal/domain"
)

func TestCreateGroupMakesCreatorAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	g, err := f.groups.CreateGroup(ctx, CreateGroupInput{Name: " Algorithms ", CreatorID: alice})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if g.Name != "Algorithms" || g.MemberCount != 1 || g.Status != domain.GroupActive {
		t.Fatalf("unexpected group %+v", g)
	}
	admin, err := f.groups.IsAdmin(ctx, g.ID, alice)
	if err != nil || !admin {
		t.Fatalf("creator must be admin (err=%v)", err)
	}

	_, err = f.groups.CreateGroup(ctx, CreateGroupInput{Name: "", CreatorID: alice})
	expectErr(t, err, domain.ErrValidation)

	_, err = f.groups.CreateGroup(ctx, CreateGroupInput{Name: "Ghosts", CreatorID: uuid.New()})
	expectErr(t, err, domain.ErrUserNotFound)
}

func TestAddMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	gid := f.group(t, alice, bob)

	_, err := f.groups.AddMember(ctx, gid, carol, bob)
	expectErr(t, err, domain.ErrNotAdmin)

	_, err = f.groups.AddMember(ctx, gid, bob, alice)
	expectErr(t, err, domain.ErrAlreadyMember)

	_, err = f.groups.AddMember(ctx, gid, uuid.New(), alice)
	expectErr(t, err, domain.ErrUserNotFound)

	m, err := f.groups.AddMember(ctx, gid, carol, alice)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if m.Role != domain.RoleMember || m.Username != "carol" {
		t.Fatalf("unexpected member %+v", m)
	}

	g, _ := f.groups.GetGroup(ctx, gid)
	if g.MemberCount != 3 {
		t.Fatalf("expected member count 3, got %d", g.MemberCount)
	}
}

func TestRejoinReactivatesAsMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	gid := f.group(t, alice, bob)

	if _, err := f.groups.UpdateRole(ctx, gid, bob, domain.RoleAdmin, alice); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if err := f.groups.RemoveMember(ctx, gid, bob, bob); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if ok, _ := f.groups.IsMember(ctx, gid, bob); ok {
		t.Fatalf("bob should have left")
	}

	m, err := f.groups.AddMember(ctx, gid, bob, alice)
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if m.Role != domain.RoleMember || m.Status != domain.MemberActive || m.LeftAt != nil {
		t.Fatalf("rejoined member must be a plain active member: %+v", m)
	}
}

func TestRemoveMemberRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	gid := f.group(t, alice, bob, carol)

	expectErr(t, f.groups.RemoveMember(ctx, gid, carol, bob), domain.ErrNotAdmin)
	expectErr(t, f.groups.RemoveMember(ctx, gid, alice, alice), domain.ErrSoleAdmin)
	expectErr(t, f.groups.RemoveMember(ctx, gid, uuid.New(), alice), domain.ErrMemberNotFound)

	if err := f.groups.RemoveMember(ctx, gid, carol, alice); err != nil {
		t.Fatalf("admin remove: %v", err)
	}
	if err := f.groups.RemoveMember(ctx, gid, bob, bob); err != nil {
		t.Fatalf("self leave: %v", err)
	}
	expectErr(t, f.groups.RemoveMember(ctx, gid, bob, bob), domain.ErrMemberNotFound)

	members, err := f.groups.ListMembers(ctx, gid)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 1 || members[0].UserID != alice {
		t.Fatalf("expected only alice left, got %+v", members)
	}
	g, _ := f.groups.GetGroup(ctx, gid)
	if g.MemberCount != 1 {
		t.Fatalf("expected member count 1, got %d", g.MemberCount)
	}
}

func TestUpdateRoleRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	gid := f.group(t, alice, bob)

	_, err := f.groups.UpdateRole(ctx, gid, alice, domain.RoleMember, alice)
	expectErr(t, err, domain.ErrSelfRoleChange)

	_, err = f.groups.UpdateRole(ctx, gid, alice, domain.RoleMember, bob)
	expectErr(t, err, domain.ErrNotAdmin)

	_, err = f.groups.UpdateRole(ctx, gid, bob, domain.Role("OWNER"), alice)
	expectErr(t, err, domain.ErrInvalidRole)

	m, err := f.groups.UpdateRole(ctx, gid, bob, domain.RoleAdmin, alice)
	if err != nil || m.Role != domain.RoleAdmin {
		t.Fatalf("promote: %v %+v", err, m)
	}

	// With two admins either may demote the other.
	m, err = f.groups.UpdateRole(ctx, gid, alice, domain.RoleMember, bob)
	if err != nil || m.Role != domain.RoleMember {
		t.Fatalf("demote: %v %+v", err, m)
	}
}

func TestTransferAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	gid := f.group(t, alice, bob)

	expectErr(t, f.groups.TransferAdmin(ctx, gid, alice, alice), domain.ErrSelfTransfer)
	expectErr(t, f.groups.TransferAdmin(ctx, gid, bob, alice), domain.ErrNotAdmin)
	expectErr(t, f.groups.TransferAdmin(ctx, gid, alice, carol), domain.ErrMemberNotFound)

	if err := f.groups.TransferAdmin(ctx, gid, alice, bob); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if ok, _ := f.groups.IsAdmin(ctx, gid, alice); ok {
		t.Fatalf("alice must be demoted")
	}
	if ok, _ := f.groups.IsAdmin(ctx, gid, bob); !ok {
		t.Fatalf("bob must be admin")
	}
	if ok, _ := f.groups.IsMember(ctx, gid, alice); !ok {
		t.Fatalf("alice must stay a member")
	}
}

func TestConcurrentAdminRemovalKeepsOneAdmin(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newFixture(t)
		ctx := context.Background()
		alice, bob := f.user(t, "alice"), f.user(t, "bob")
		gid := f.group(t, alice, bob)
		if _, err := f.groups.UpdateRole(ctx, gid, bob, domain.RoleAdmin, alice); err != nil {
			t.Fatalf("promote: %v", err)
		}

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() { defer wg.Done(); errs[0] = f.groups.RemoveMember(ctx, gid, alice, alice) }()
		go func() { defer wg.Done(); errs[1] = f.groups.RemoveMember(ctx, gid, bob, bob) }()
		wg.Wait()

		failures := 0
		for _, err := range errs {
			if err != nil {
				if !errors.Is(err, domain.ErrSoleAdmin) {
					t.Fatalf("unexpected error: %v", err)
				}
				failures++
			}
		}
		if failures != 1 {
			t.Fatalf("expected exactly one removal to fail, got %d", failures)
		}

		members, _ := f.groups.ListMembers(ctx, gid)
		admins := 0
		for _, m := range members {
			if m.Role == domain.RoleAdmin {
				admins++
			}
		}
		if admins != 1 {
			t.Fatalf("expected 1 admin, got %d", admins)
		}
	}
}

func TestUpdateAndDeleteGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	gid := f.group(t, alice, bob)

	_, err := f.groups.UpdateGroup(ctx, gid, bob, GroupUpdate{Name: str("Hijacked")})
	expectErr(t, err, domain.ErrNotAdmin)

	_, err = f.groups.UpdateGroup(ctx, gid, alice, GroupUpdate{})
	expectErr(t, err, domain.ErrEmptyUpdate)

	g, err := f.groups.UpdateGroup(ctx, gid, alice, GroupUpdate{Description: str("Finals prep")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if g.Name != "Study group" || g.Description == nil || *g.Description != "Finals prep" {
		t.Fatalf("partial update lost fields: %+v", g)
	}

	if err := f.groups.DeleteGroup(ctx, gid, alice); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = f.groups.GetGroup(ctx, gid)
	expectErr(t, err, domain.ErrGroupNotFound)

	_, err = f.messages.Send(ctx, SendMessageInput{SenderID: alice, GroupID: &gid, Content: str("anyone?")})
	expectErr(t, err, domain.ErrGroupNotFound)

	groups, _ := f.groups.ListUserGroups(ctx, alice)
	if len(groups) != 0 {
		t.Fatalf("deleted group still listed")
	}
}

func TestGroupStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, outsider := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "eve")
	gid := f.group(t, alice, bob)

	now := time.Now()
	f.messages.now = func() time.Time { return now.Add(-10 * 24 * time.Hour) }
	f.sendGroup(t, alice, gid, "old")
	f.messages.now = func() time.Time { return now.Add(-3 * 24 * time.Hour) }
	f.sendGroup(t, bob, gid, "this week")
	f.messages.now = time.Now
	f.sendGroup(t, alice, gid, "today")

	_, err := f.groups.GetStats(ctx, gid, outsider)
	expectErr(t, err, domain.ErrNotMember)

	st, err := f.groups.GetStats(ctx, gid, bob)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalMessages != 3 || st.Last7Days != 2 || st.Last24Hours != 1 || st.MemberCount != 2 {
		t.Fatalf("unexpected stats %+v", st)
	}
}
