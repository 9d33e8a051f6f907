package broadcast

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/vedran77/campuschat/internal/domain"
)

func TestPairTopicOrderIndependent(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	if PairTopic(a, b) != PairTopic(b, a) {
		t.Fatalf("pair topic must not depend on argument order")
	}
	if !strings.HasPrefix(PairTopic(a, b), "private:") {
		t.Fatalf("unexpected topic %q", PairTopic(a, b))
	}

	x, y, ok := PairMembers(PairTopic(a, b))
	if !ok {
		t.Fatalf("failed to parse pair topic")
	}
	if !((x == a && y == b) || (x == b && y == a)) {
		t.Fatalf("parsed ids do not match")
	}
}

func TestTopicParsing(t *testing.T) {
	g := uuid.New()
	id, ok := GroupID(GroupTopic(g))
	if !ok || id != g {
		t.Fatalf("group topic round trip failed")
	}
	if _, ok := GroupID(UserTopic(g)); ok {
		t.Fatalf("user topic is not a group topic")
	}
	if _, _, ok := PairMembers("private:not-a-uuid:x"); ok {
		t.Fatalf("malformed pair topic must not parse")
	}
	if UserTopic(g) != "user:"+g.String() {
		t.Fatalf("unexpected user topic %q", UserTopic(g))
	}
}

func TestThreadTopic(t *testing.T) {
	a, b, g := uuid.New(), uuid.New(), uuid.New()
	private := &domain.Message{SenderID: a, ReceiverID: &b}
	if ThreadTopic(private) != PairTopic(b, a) {
		t.Fatalf("private message must go to the pair topic")
	}
	group := &domain.Message{SenderID: a, GroupID: &g}
	if ThreadTopic(group) != GroupTopic(g) {
		t.Fatalf("group message must go to the group topic")
	}
}
