package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/campuschat/internal/domain"
	"github.com/vedran77/campuschat/internal/metrics"
	"github.com/vedran77/campuschat/internal/repository"
	"github.com/vedran77/campuschat/pkg/validator"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// Notifier broadcasts real-time events to connected clients. It is called
// after the write has committed and never reports failure.
type Notifier interface {
	NotifyNewMessage(msg *domain.Message)
	NotifyMessagesRead(receipts []domain.ReadReceipt)
	NotifyMessageEdited(msg *domain.Message)
	NotifyMemberRemoved(groupID, userID uuid.UUID)
	NotifyGroupDeleted(groupID uuid.UUID)
}

type MessageService struct {
	messageRepo repository.MessageRepository
	groupRepo   repository.GroupRepository
	userRepo    repository.UserRepository
	now         func() time.Time
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	groupRepo repository.GroupRepository,
	userRepo repository.UserRepository,
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		groupRepo:   groupRepo,
		userRepo:    userRepo,
		now:         time.Now,
	}
}

type SendMessageInput struct {
	SenderID   uuid.UUID  `json:"senderId"`
	ReceiverID *uuid.UUID `json:"receiverId,omitempty"`
	GroupID    *uuid.UUID `json:"groupId,omitempty"`
	Content    *string    `json:"content,omitempty"`
	Attachment *string    `json:"attachment,omitempty"`
	ReplyToID  *uuid.UUID `json:"replyToId,omitempty"`
}

type EditMessageInput struct {
	RequesterID uuid.UUID `json:"requesterId"`
	Content     string    `json:"content"`
}

type MessageListResponse struct {
	Messages []domain.Message `json:"messages"`
	HasMore  bool             `json:"hasMore"`
}

func (s *MessageService) Send(ctx context.Context, input SendMessageInput) (*domain.Message, error) {
	if (input.ReceiverID == nil) == (input.GroupID == nil) {
		return nil, domain.ErrInvalidAddressing
	}
	content, attachment, err := normalizeBody(input.Content, input.Attachment)
	if err != nil {
		return nil, err
	}

	if input.ReceiverID != nil {
		if *input.ReceiverID == input.SenderID {
			return nil, domain.ErrSelfMessage
		}
		receiver, err := s.userRepo.GetByID(ctx, *input.ReceiverID)
		if err != nil {
			return nil, err
		}
		if receiver == nil {
			return nil, domain.ErrUserNotFound
		}
	} else if err := s.checkGroupMember(ctx, *input.GroupID, input.SenderID); err != nil {
		return nil, err
	}

	if input.ReplyToID != nil {
		parent, err := s.messageRepo.GetByID(ctx, *input.ReplyToID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, domain.ErrReplyNotFound
		}
		if !sameThread(parent, input) {
			return nil, domain.ErrReplyOutside
		}
	}

	msg := &domain.Message{
		ID:         uuid.New(),
		SenderID:   input.SenderID,
		ReceiverID: input.ReceiverID,
		GroupID:    input.GroupID,
		Content:    content,
		Attachment: attachment,
		ReplyToID:  input.ReplyToID,
		Status:     domain.MessageSent,
		CreatedAt:  s.now(),
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}

	kind := "private"
	if msg.IsGroup() {
		kind = "group"
	}
	metrics.MessagesSent.WithLabelValues(kind).Inc()

	// Reload with joined fields.
	full, err := s.messageRepo.GetByID(ctx, msg.ID)
	if err != nil {
		return nil, err
	}
	if full == nil {
		return nil, domain.ErrMessageNotFound
	}
	return full, nil
}

// ListPrivate returns the thread between viewerID and otherID, newest first.
func (s *MessageService) ListPrivate(ctx context.Context, viewerID, otherID uuid.UUID, limit, offset int) (*MessageListResponse, error) {
	limit, offset = clampPage(limit, offset)
	messages, err := s.messageRepo.ListPrivate(ctx, viewerID, otherID, limit+1, offset)
	if err != nil {
		return nil, err
	}
	return pageResponse(messages, limit), nil
}

func (s *MessageService) ListGroup(ctx context.Context, groupID, requesterID uuid.UUID, limit, offset int) (*MessageListResponse, error) {
	if err := s.checkGroupMember(ctx, groupID, requesterID); err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)
	messages, err := s.messageRepo.ListGroup(ctx, groupID, requesterID, limit+1, offset)
	if err != nil {
		return nil, err
	}
	return pageResponse(messages, limit), nil
}

// MarkPrivateRead marks everything senderID sent to receiverID as read.
func (s *MessageService) MarkPrivateRead(ctx context.Context, receiverID, senderID uuid.UUID) (*domain.ReadReceipt, error) {
	n, err := s.messageRepo.MarkPrivateRead(ctx, receiverID, senderID, s.now())
	if err != nil {
		return nil, fmt.Errorf("marking private messages read: %w", err)
	}
	return &domain.ReadReceipt{ReceiverID: receiverID, SenderID: senderID, MarkedCount: n}, nil
}

// MarkGroupRead marks every group message not sent by receiverID as read.
// The read state is a single per-message status shared by all members.
func (s *MessageService) MarkGroupRead(ctx context.Context, receiverID, groupID uuid.UUID) ([]domain.ReadReceipt, error) {
	if err := s.checkGroupMember(ctx, groupID, receiverID); err != nil {
		return nil, err
	}
	receipts, err := s.messageRepo.MarkGroupRead(ctx, receiverID, groupID, s.now())
	if err != nil {
		return nil, fmt.Errorf("marking group messages read: %w", err)
	}
	if receipts == nil {
		receipts = []domain.ReadReceipt{}
	}
	return receipts, nil
}

func (s *MessageService) SoftDeleteForSender(ctx context.Context, messageID, requesterID uuid.UUID) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return domain.ErrMessageNotFound
	}
	if msg.SenderID != requesterID {
		return domain.ErrNotSender
	}
	if msg.DeletedBySender {
		return nil
	}
	return s.messageRepo.MarkDeletedBySender(ctx, messageID)
}

func (s *MessageService) Edit(ctx context.Context, messageID uuid.UUID, input EditMessageInput) (*domain.Message, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil || (msg.DeletedBySender && msg.SenderID == input.RequesterID) {
		return nil, domain.ErrMessageNotFound
	}
	if msg.SenderID != input.RequesterID {
		return nil, domain.ErrNotSender
	}

	content, attachment, err := normalizeBody(&input.Content, msg.Attachment)
	if err != nil {
		return nil, err
	}
	if content == nil && attachment != nil {
		// Clearing the text of an attachment message is allowed.
		content = new(string)
	}

	if err := s.messageRepo.UpdateContent(ctx, messageID, *content, s.now()); err != nil {
		return nil, fmt.Errorf("updating message: %w", err)
	}

	updated, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, domain.ErrMessageNotFound
	}
	return updated, nil
}

func (s *MessageService) CountUnread(ctx context.Context, userID uuid.UUID) (domain.UnreadCounts, error) {
	return s.messageRepo.CountUnread(ctx, userID)
}

// Purge removes a message for good. Only reachable from the admin CLI.
func (s *MessageService) Purge(ctx context.Context, messageID uuid.UUID) error {
	deleted, err := s.messageRepo.HardDelete(ctx, messageID)
	if err != nil {
		return fmt.Errorf("purging message: %w", err)
	}
	if !deleted {
		return domain.ErrMessageNotFound
	}
	return nil
}

func (s *MessageService) checkGroupMember(ctx context.Context, groupID, userID uuid.UUID) error {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if group == nil || !group.IsActive() {
		return domain.ErrGroupNotFound
	}
	member, err := s.groupRepo.GetMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !member.IsActive() {
		return domain.ErrNotMember
	}
	return nil
}

// normalizeBody trims both parts, drops empty ones and enforces that at least
// one remains.
func normalizeBody(content, attachment *string) (*string, *string, error) {
	content = trimmed(content)
	attachment = trimmed(attachment)
	if content == nil && attachment == nil {
		return nil, nil, domain.ErrEmptyMessage
	}
	if errs := validator.ValidateMessageBody(content, attachment); errs.HasErrors() {
		return nil, nil, domain.NewFieldErrors(errs)
	}
	return content, attachment, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func sameThread(parent *domain.Message, input SendMessageInput) bool {
	if input.GroupID != nil {
		return parent.GroupID != nil && *parent.GroupID == *input.GroupID
	}
	if parent.ReceiverID == nil {
		return false
	}
	a, b := parent.SenderID, *parent.ReceiverID
	return (a == input.SenderID && b == *input.ReceiverID) || (a == *input.ReceiverID && b == input.SenderID)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// pageResponse expects limit+1 rows fetched newest first.
func pageResponse(messages []domain.Message, limit int) *MessageListResponse {
	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return &MessageListResponse{Messages: messages, HasMore: hasMore}
}

// TotalMarked sums the per-sender counts of a group read.
func TotalMarked(receipts []domain.ReadReceipt) int64 {
	var n int64
	for _, r := range receipts {
		n += r.MarkedCount
	}
	return n
}
