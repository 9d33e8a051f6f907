package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/vedran77/campuschat/internal/domain"
	"github.com/vedran77/campuschat/internal/repository/memory"
)

type fixture struct {
	store    *memory.Store
	messages *MessageService
	groups   *GroupService
	convs    *ConversationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	userRepo := memory.NewUserRepo(store)
	groupRepo := memory.NewGroupRepo(store)
	messageRepo := memory.NewMessageRepo(store)
	return &fixture{
		store:    store,
		messages: NewMessageService(messageRepo, groupRepo, userRepo),
		groups:   NewGroupService(groupRepo, userRepo),
		convs:    NewConversationService(memory.NewConversationRepo(store)),
	}
}

func (f *fixture) user(t *testing.T, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	f.store.PutUser(domain.User{ID: id, Username: name, DisplayName: name})
	return id
}

// group creates a group owned by admin with the given extra members.
func (f *fixture) group(t *testing.T, admin uuid.UUID, members ...uuid.UUID) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	g, err := f.groups.CreateGroup(ctx, CreateGroupInput{Name: "Study group", CreatorID: admin})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	for _, m := range members {
		if _, err := f.groups.AddMember(ctx, g.ID, m, admin); err != nil {
			t.Fatalf("add member: %v", err)
		}
	}
	return g.ID
}

func (f *fixture) sendPrivate(t *testing.T, from, to uuid.UUID, text string) *domain.Message {
	t.Helper()
	msg, err := f.messages.Send(context.Background(), SendMessageInput{SenderID: from, ReceiverID: &to, Content: &text})
	if err != nil {
		t.Fatalf("send private: %v", err)
	}
	return msg
}

func (f *fixture) sendGroup(t *testing.T, from, groupID uuid.UUID, text string) *domain.Message {
	t.Helper()
	msg, err := f.messages.Send(context.Background(), SendMessageInput{SenderID: from, GroupID: &groupID, Content: &text})
	if err != nil {
		t.Fatalf("send group: %v", err)
	}
	return msg
}

func str(s string) *string { return &s }

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}
