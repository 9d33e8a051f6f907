package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/campuschat/internal/domain"
)

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

// visibleThreads lists the messages userID ($1) can see, keyed by thread.
const visibleThreads = `
	WITH my_groups AS (
		SELECT gm.group_id FROM group_members gm
		JOIN groups g ON g.id = gm.group_id
		WHERE gm.user_id = $1 AND gm.status = 'ACTIVE' AND g.status = 'ACTIVE'
	),
	visible AS (
		SELECT m.id, m.created_at,
			CASE WHEN m.group_id IS NULL THEN 'private' ELSE 'group' END AS kind,
			COALESCE(m.group_id, CASE WHEN m.sender_id = $1 THEN m.receiver_id ELSE m.sender_id END) AS thread_id
		FROM messages m
		WHERE ((m.receiver_id IS NOT NULL AND (m.sender_id = $1 OR m.receiver_id = $1))
				OR m.group_id IN (SELECT group_id FROM my_groups))
			AND NOT (m.sender_id = $1 AND m.deleted_by_sender)
	),
	latest AS (
		SELECT DISTINCT ON (kind, thread_id) kind, thread_id, id
		FROM visible
		ORDER BY kind, thread_id, created_at DESC, id DESC
	)`

func (r *ConversationRepo) LatestPerConversation(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	query := visibleThreads + `
		SELECT l.kind, l.thread_id,
			COALESCE(g.name, pu.display_name, ''),
			COALESCE(g.avatar, pu.avatar_url),
			l.id
		FROM latest l
		LEFT JOIN groups g ON l.kind = 'group' AND g.id = l.thread_id
		LEFT JOIN users pu ON l.kind = 'private' AND pu.id = l.thread_id`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		convs  []domain.Conversation
		msgIDs []uuid.UUID
	)
	for rows.Next() {
		var (
			c     domain.Conversation
			kind  string
			msgID uuid.UUID
		)
		if err := rows.Scan(&kind, &c.ID, &c.Name, &c.Avatar, &msgID); err != nil {
			return nil, err
		}
		c.Kind = domain.ConversationKind(kind)
		c.LastMessage = &domain.Message{ID: msgID}
		convs = append(convs, c)
		msgIDs = append(msgIDs, msgID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return nil, nil
	}

	messages, err := r.messagesByID(ctx, msgIDs)
	if err != nil {
		return nil, err
	}
	for i := range convs {
		if msg, ok := messages[convs[i].LastMessage.ID]; ok {
			convs[i].LastMessage = msg
			convs[i].LastMessageAt = msg.CreatedAt
		}
	}
	return convs, nil
}

func (r *ConversationRepo) messagesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Message, error) {
	rows, err := r.pool.Query(ctx, messageSelect+` WHERE m.id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID]*domain.Message, len(ids))
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out[msg.ID] = msg
	}
	return out, rows.Err()
}

func (r *ConversationRepo) UnreadByConversation(ctx context.Context, userID uuid.UUID) (map[domain.ConversationKey]int64, error) {
	query := `
		SELECT CASE WHEN m.group_id IS NULL THEN 'private' ELSE 'group' END,
			COALESCE(m.group_id, m.sender_id),
			COUNT(*)
		FROM messages m
		WHERE m.status = 'SENT'
			AND (m.receiver_id = $1
				OR (m.sender_id <> $1 AND m.group_id IN (
					SELECT gm.group_id FROM group_members gm
					JOIN groups g ON g.id = gm.group_id
					WHERE gm.user_id = $1 AND gm.status = 'ACTIVE' AND g.status = 'ACTIVE')))
		GROUP BY 1, 2`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.ConversationKey]int64)
	for rows.Next() {
		var (
			kind string
			id   uuid.UUID
			n    int64
		)
		if err := rows.Scan(&kind, &id, &n); err != nil {
			return nil, err
		}
		counts[domain.ConversationKey{Kind: domain.ConversationKind(kind), ID: id}] = n
	}
	return counts, rows.Err()
}
