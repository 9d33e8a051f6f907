package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
)

func TestErrorIsMatchesKindAndCode(t *testing.T) {
	fresh := &Error{Kind: KindPermission, Code: "NOT_MEMBER", Message: "custom text"}
	if !errors.Is(fresh, ErrNotMember) {
		t.Fatalf("expected fresh NOT_MEMBER error to match sentinel")
	}
	if errors.Is(fresh, ErrNotAdmin) {
		t.Fatalf("NOT_MEMBER must not match NOT_ADMIN")
	}

	wrapped := fmt.Errorf("removing member: %w", ErrSoleAdmin)
	if !errors.Is(wrapped, ErrSoleAdmin) {
		t.Fatalf("expected wrapped error to match SOLE_ADMIN")
	}
	e, ok := AsError(wrapped)
	if !ok || e.Kind != KindInvariant {
		t.Fatalf("expected invariant error, got %#v", e)
	}
}

func TestErrorKindStatus(t *testing.T) {
	cases := map[ErrorKind]int{
		KindValidation: http.StatusBadRequest,
		KindInvariant:  http.StatusBadRequest,
		KindPermission: http.StatusForbidden,
		KindNotFound:   http.StatusNotFound,
		KindConflict:   http.StatusConflict,
		ErrorKind(0):   http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := kind.HTTPStatus(); got != want {
			t.Fatalf("%s: expected %d, got %d", kind, want, got)
		}
	}
}

func TestAsErrorUnclassified(t *testing.T) {
	if _, ok := AsError(errors.New("boom")); ok {
		t.Fatalf("plain errors must not classify")
	}
}

func TestMessagePeer(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	m := &Message{SenderID: a, ReceiverID: &b}
	if m.Peer(a) != b || m.Peer(b) != a {
		t.Fatalf("unexpected peer resolution")
	}
	g := uuid.New()
	gm := &Message{SenderID: a, GroupID: &g}
	if gm.Peer(a) != uuid.Nil || !gm.IsGroup() {
		t.Fatalf("group message has no peer")
	}
}

func TestGroupMemberPredicates(t *testing.T) {
	var none *GroupMember
	if none.IsActive() || none.IsAdmin() {
		t.Fatalf("nil member must not be active")
	}
	left := &GroupMember{Role: RoleAdmin, Status: MemberLeft}
	if left.IsAdmin() {
		t.Fatalf("left admin must not count as admin")
	}
	admin := &GroupMember{Role: RoleAdmin, Status: MemberActive}
	if !admin.IsAdmin() {
		t.Fatalf("expected active admin")
	}
	if Role("OWNER").Valid() {
		t.Fatalf("OWNER is not a valid role")
	}
}
