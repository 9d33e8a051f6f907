package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/campuschat/internal/domain"
)

// Get* methods return (nil, nil) when the row does not exist.

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	// GetByID returns the message with sender, receiver, group and reply
	// preview fields filled in.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	// ListPrivate returns messages between viewer and other, newest first,
	// hiding messages the viewer soft-deleted as sender.
	ListPrivate(ctx context.Context, viewerID, otherID uuid.UUID, limit, offset int) ([]domain.Message, error)
	ListGroup(ctx context.Context, groupID, viewerID uuid.UUID, limit, offset int) ([]domain.Message, error)
	UpdateContent(ctx context.Context, id uuid.UUID, content string, editedAt time.Time) error
	MarkDeletedBySender(ctx context.Context, id uuid.UUID) error
	MarkPrivateRead(ctx context.Context, receiverID, senderID uuid.UUID, at time.Time) (int64, error)
	// MarkGroupRead returns one receipt per original sender whose messages changed.
	MarkGroupRead(ctx context.Context, receiverID, groupID uuid.UUID, at time.Time) ([]domain.ReadReceipt, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (domain.UnreadCounts, error)
	HardDelete(ctx context.Context, id uuid.UUID) (bool, error)
}

type GroupRepository interface {
	// Create stores the group and its creator membership atomically.
	Create(ctx context.Context, group *domain.Group, creator *domain.GroupMember) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Group, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Group, error)
	GetMember(ctx context.Context, groupID, userID uuid.UUID) (*domain.GroupMember, error)
	ListMembers(ctx context.Context, groupID uuid.UUID) ([]domain.GroupMember, error)
	Stats(ctx context.Context, groupID uuid.UUID, now time.Time) (*domain.GroupStats, error)
	// WithinGroupTx locks the group row and runs fn in one transaction.
	// Membership writers of the same group are serialised. Returns
	// domain.ErrGroupNotFound when the group does not exist.
	WithinGroupTx(ctx context.Context, groupID uuid.UUID, fn func(tx GroupTx) error) error
}

// GroupTx is the set of membership writes available while a group is locked.
type GroupTx interface {
	Group() *domain.Group
	GetMember(ctx context.Context, userID uuid.UUID) (*domain.GroupMember, error)
	// UpsertMember activates userID with role, reviving a LEFT row.
	// Reports false if the user is already ACTIVE.
	UpsertMember(ctx context.Context, userID uuid.UUID, role domain.Role, at time.Time) (bool, error)
	// DeactivateMember marks an ACTIVE member LEFT. Reports false when the
	// member is not active or is the last active admin.
	DeactivateMember(ctx context.Context, userID uuid.UUID, at time.Time) (bool, error)
	// SetRole changes the role of an ACTIVE member. Reports false when the
	// change would demote the last active admin.
	SetRole(ctx context.Context, userID uuid.UUID, role domain.Role) (bool, error)
	Update(ctx context.Context, group *domain.Group) error
	AdjustMemberCount(ctx context.Context, delta int) error
}

type ConversationRepository interface {
	// LatestPerConversation returns one entry per thread the user can see,
	// carrying the hydrated most recent message. UnreadCount is left zero.
	LatestPerConversation(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error)
	// UnreadByConversation counts SENT messages addressed to the user in a
	// single grouped query.
	UnreadByConversation(ctx context.Context, userID uuid.UUID) (map[domain.ConversationKey]int64, error)
}
