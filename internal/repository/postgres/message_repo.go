package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/campuschat/internal/domain"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (id, sender_id, receiver_id, group_id, content, attachment, reply_to_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, query,
		msg.ID, msg.SenderID, msg.ReceiverID, msg.GroupID, msg.Content, msg.Attachment,
		msg.ReplyToID, string(msg.Status), msg.CreatedAt,
	)
	return err
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	msg, err := scanMessage(r.pool.QueryRow(ctx, messageSelect+` WHERE m.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return msg, err
}

func (r *MessageRepo) ListPrivate(ctx context.Context, viewerID, otherID uuid.UUID, limit, offset int) ([]domain.Message, error) {
	query := messageSelect + `
		WHERE ((m.sender_id = $1 AND m.receiver_id = $2) OR (m.sender_id = $2 AND m.receiver_id = $1))
			AND NOT (m.sender_id = $1 AND m.deleted_by_sender)
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $3 OFFSET $4`
	return r.list(ctx, query, viewerID, otherID, limit, offset)
}

func (r *MessageRepo) ListGroup(ctx context.Context, groupID, viewerID uuid.UUID, limit, offset int) ([]domain.Message, error) {
	query := messageSelect + `
		WHERE m.group_id = $1
			AND NOT (m.sender_id = $2 AND m.deleted_by_sender)
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $3 OFFSET $4`
	return r.list(ctx, query, groupID, viewerID, limit, offset)
}

func (r *MessageRepo) list(ctx context.Context, query string, args ...any) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

func (r *MessageRepo) UpdateContent(ctx context.Context, id uuid.UUID, content string, editedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE messages SET content = $1, edited_at = $2 WHERE id = $3`, content, editedAt, id)
	return err
}

func (r *MessageRepo) MarkDeletedBySender(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE messages SET deleted_by_sender = true WHERE id = $1`, id)
	return err
}

func (r *MessageRepo) MarkPrivateRead(ctx context.Context, receiverID, senderID uuid.UUID, at time.Time) (int64, error) {
	query := `
		UPDATE messages SET status = 'READ', read_at = $3
		WHERE receiver_id = $1 AND sender_id = $2 AND status = 'SENT'`
	tag, err := r.pool.Exec(ctx, query, receiverID, senderID, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *MessageRepo) MarkGroupRead(ctx context.Context, receiverID, groupID uuid.UUID, at time.Time) ([]domain.ReadReceipt, error) {
	query := `
		WITH marked AS (
			UPDATE messages SET status = 'READ', read_at = $3
			WHERE group_id = $2 AND sender_id <> $1 AND status = 'SENT'
			RETURNING sender_id
		)
		SELECT sender_id, COUNT(*) FROM marked GROUP BY sender_id ORDER BY sender_id`
	rows, err := r.pool.Query(ctx, query, receiverID, groupID, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []domain.ReadReceipt
	for rows.Next() {
		rc := domain.ReadReceipt{ReceiverID: receiverID, GroupID: &groupID}
		if err := rows.Scan(&rc.SenderID, &rc.MarkedCount); err != nil {
			return nil, err
		}
		receipts = append(receipts, rc)
	}
	return receipts, rows.Err()
}

func (r *MessageRepo) CountUnread(ctx context.Context, userID uuid.UUID) (domain.UnreadCounts, error) {
	query := `
		SELECT COUNT(*) FILTER (WHERE m.receiver_id = $1),
			COUNT(*) FILTER (WHERE m.group_id IS NOT NULL)
		FROM messages m
		WHERE m.status = 'SENT'
			AND (m.receiver_id = $1
				OR (m.sender_id <> $1 AND m.group_id IN (
					SELECT gm.group_id FROM group_members gm
					JOIN groups g ON g.id = gm.group_id
					WHERE gm.user_id = $1 AND gm.status = 'ACTIVE' AND g.status = 'ACTIVE')))`
	var c domain.UnreadCounts
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&c.Private, &c.Group); err != nil {
		return c, err
	}
	c.Total = c.Private + c.Group
	return c, nil
}

func (r *MessageRepo) HardDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE messages SET reply_to_id = NULL WHERE reply_to_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	return deleted, err
}
