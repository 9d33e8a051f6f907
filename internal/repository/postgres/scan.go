package postgres

import (
	"github.com/google/uuid"
	"github.com/vedran77/campuschat/internal/domain"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// messageSelect is the hydrated message projection. Callers append WHERE,
// ORDER BY and LIMIT clauses that refer to m.
const messageSelect = `
	SELECT m.id, m.sender_id, m.receiver_id, m.group_id, m.content, m.attachment,
		m.reply_to_id, m.status, m.deleted_by_sender, m.created_at, m.read_at, m.edited_at,
		su.username, su.display_name, su.avatar_url,
		COALESCE(ru.username, ''), COALESCE(ru.display_name, ''),
		COALESCE(g.name, ''),
		rm.id, rm.sender_id, COALESCE(rsu.display_name, ''), rm.content, rm.attachment
	FROM messages m
	JOIN users su ON su.id = m.sender_id
	LEFT JOIN users ru ON ru.id = m.receiver_id
	LEFT JOIN groups g ON g.id = m.group_id
	LEFT JOIN messages rm ON rm.id = m.reply_to_id
	LEFT JOIN users rsu ON rsu.id = rm.sender_id`

func scanMessage(row rowScanner) (*domain.Message, error) {
	var (
		msg          domain.Message
		status       string
		replyID      *uuid.UUID
		replySender  *uuid.UUID
		replyName    string
		replyContent *string
		replyAttach  *string
	)
	err := row.Scan(
		&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.GroupID, &msg.Content, &msg.Attachment,
		&msg.ReplyToID, &status, &msg.DeletedBySender, &msg.CreatedAt, &msg.ReadAt, &msg.EditedAt,
		&msg.SenderUsername, &msg.SenderDisplayName, &msg.SenderAvatar,
		&msg.ReceiverUsername, &msg.ReceiverDisplayName,
		&msg.GroupName,
		&replyID, &replySender, &replyName, &replyContent, &replyAttach,
	)
	if err != nil {
		return nil, err
	}
	msg.Status = domain.MessageStatus(status)

	if replyID != nil {
		preview := &domain.ReplyPreview{
			ID:                *replyID,
			SenderDisplayName: replyName,
			Content:           replyContent,
			Attachment:        replyAttach,
		}
		if replySender != nil {
			preview.SenderID = *replySender
		}
		msg.ReplyTo = preview
	}
	return &msg, nil
}

func scanMember(row rowScanner) (*domain.GroupMember, error) {
	var (
		m      domain.GroupMember
		role   string
		status string
	)
	if err := row.Scan(
		&m.GroupID, &m.UserID, &role, &status, &m.JoinedAt, &m.LeftAt,
		&m.Username, &m.DisplayName, &m.AvatarURL,
	); err != nil {
		return nil, err
	}
	m.Role = domain.Role(role)
	m.Status = domain.MemberStatus(status)
	return &m, nil
}

const memberSelect = `
	SELECT gm.group_id, gm.user_id, gm.role, gm.status, gm.joined_at, gm.left_at,
		u.username, u.display_name, u.avatar_url
	FROM group_members gm
	JOIN users u ON u.id = gm.user_id`

func scanGroup(row rowScanner) (*domain.Group, error) {
	var (
		g      domain.Group
		status string
	)
	if err := row.Scan(
		&g.ID, &g.Name, &g.Description, &g.Avatar, &g.MemberCount, &status,
		&g.CreatedBy, &g.CreatedAt, &g.UpdatedAt,
	); err != nil {
		return nil, err
	}
	g.Status = domain.GroupStatus(status)
	return &g, nil
}

const groupColumns = `g.id, g.name, g.description, g.avatar, g.member_count, g.status, g.created_by, g.created_at, g.updated_at`
