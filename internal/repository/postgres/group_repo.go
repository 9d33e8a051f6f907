package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/campuschat/internal/domain"
	"github.com/vedran77/campuschat/internal/repository"
)

type GroupRepo struct {
	pool *pgxpool.Pool
}

func NewGroupRepo(pool *pgxpool.Pool) *GroupRepo {
	return &GroupRepo{pool: pool}
}

func (r *GroupRepo) Create(ctx context.Context, g *domain.Group, creator *domain.GroupMember) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO groups (id, name, description, avatar, member_count, status, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			g.ID, g.Name, g.Description, g.Avatar, g.MemberCount, string(g.Status), g.CreatedBy, g.CreatedAt, g.UpdatedAt,
		)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO group_members (group_id, user_id, role, status, joined_at)
			VALUES ($1, $2, $3, $4, $5)`,
			creator.GroupID, creator.UserID, string(creator.Role), string(creator.Status), creator.JoinedAt,
		)
		return err
	})
}

func (r *GroupRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Group, error) {
	g, err := scanGroup(r.pool.QueryRow(ctx, `SELECT `+groupColumns+` FROM groups g WHERE g.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return g, err
}

func (r *GroupRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Group, error) {
	query := `
		SELECT ` + groupColumns + `
		FROM groups g
		INNER JOIN group_members gm ON g.id = gm.group_id
		WHERE gm.user_id = $1 AND gm.status = 'ACTIVE' AND g.status = 'ACTIVE'
		ORDER BY g.updated_at DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []domain.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}

func (r *GroupRepo) GetMember(ctx context.Context, groupID, userID uuid.UUID) (*domain.GroupMember, error) {
	return getMember(ctx, r.pool, groupID, userID)
}

func (r *GroupRepo) ListMembers(ctx context.Context, groupID uuid.UUID) ([]domain.GroupMember, error) {
	query := memberSelect + `
		WHERE gm.group_id = $1 AND gm.status = 'ACTIVE'
		ORDER BY gm.role, gm.joined_at`
	rows, err := r.pool.Query(ctx, query, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.GroupMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (r *GroupRepo) Stats(ctx context.Context, groupID uuid.UUID, now time.Time) (*domain.GroupStats, error) {
	query := `
		SELECT g.member_count,
			(SELECT COUNT(*) FROM messages m WHERE m.group_id = g.id),
			(SELECT COUNT(*) FROM messages m WHERE m.group_id = g.id AND m.created_at >= $2),
			(SELECT COUNT(*) FROM messages m WHERE m.group_id = g.id AND m.created_at >= $3)
		FROM groups g
		WHERE g.id = $1`
	st := domain.GroupStats{GroupID: groupID}
	err := r.pool.QueryRow(ctx, query, groupID, now.Add(-7*24*time.Hour), now.Add(-24*time.Hour)).Scan(
		&st.MemberCount, &st.TotalMessages, &st.Last7Days, &st.Last24Hours,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *GroupRepo) WithinGroupTx(ctx context.Context, groupID uuid.UUID, fn func(tx repository.GroupTx) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		g, err := scanGroup(tx.QueryRow(ctx, `SELECT `+groupColumns+` FROM groups g WHERE g.id = $1 FOR UPDATE`, groupID))
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrGroupNotFound
		}
		if err != nil {
			return err
		}
		return fn(&groupTx{tx: tx, group: g})
	})
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getMember(ctx context.Context, q querier, groupID, userID uuid.UUID) (*domain.GroupMember, error) {
	m, err := scanMember(q.QueryRow(ctx, memberSelect+` WHERE gm.group_id = $1 AND gm.user_id = $2`, groupID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// groupTx runs membership writes on a transaction holding the group row lock.
type groupTx struct {
	tx    pgx.Tx
	group *domain.Group
}

func (t *groupTx) Group() *domain.Group {
	return t.group
}

func (t *groupTx) GetMember(ctx context.Context, userID uuid.UUID) (*domain.GroupMember, error) {
	return getMember(ctx, t.tx, t.group.ID, userID)
}

func (t *groupTx) UpsertMember(ctx context.Context, userID uuid.UUID, role domain.Role, at time.Time) (bool, error) {
	query := `
		INSERT INTO group_members (group_id, user_id, role, status, joined_at)
		VALUES ($1, $2, $3, 'ACTIVE', $4)
		ON CONFLICT (group_id, user_id) DO UPDATE
			SET role = EXCLUDED.role, status = 'ACTIVE', joined_at = EXCLUDED.joined_at, left_at = NULL
			WHERE group_members.status = 'LEFT'`
	tag, err := t.tx.Exec(ctx, query, t.group.ID, userID, string(role), at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// The admin count subquery sees the same snapshot as the UPDATE, and the
// group row lock keeps other writers out until commit.
const otherAdminsExist = `(
	SELECT COUNT(*) FROM group_members a
	WHERE a.group_id = $1 AND a.role = 'ADMIN' AND a.status = 'ACTIVE'
) > 1`

func (t *groupTx) DeactivateMember(ctx context.Context, userID uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE group_members gm SET status = 'LEFT', left_at = $3
		WHERE gm.group_id = $1 AND gm.user_id = $2 AND gm.status = 'ACTIVE'
			AND (gm.role <> 'ADMIN' OR ` + otherAdminsExist + `)`
	tag, err := t.tx.Exec(ctx, query, t.group.ID, userID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (t *groupTx) SetRole(ctx context.Context, userID uuid.UUID, role domain.Role) (bool, error) {
	query := `
		UPDATE group_members gm SET role = $3::varchar
		WHERE gm.group_id = $1 AND gm.user_id = $2 AND gm.status = 'ACTIVE'
			AND ($3::varchar = 'ADMIN' OR gm.role <> 'ADMIN' OR ` + otherAdminsExist + `)`
	tag, err := t.tx.Exec(ctx, query, t.group.ID, userID, string(role))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (t *groupTx) Update(ctx context.Context, g *domain.Group) error {
	query := `
		UPDATE groups SET name = $1, description = $2, avatar = $3, status = $4, updated_at = $5
		WHERE id = $6`
	_, err := t.tx.Exec(ctx, query, g.Name, g.Description, g.Avatar, string(g.Status), g.UpdatedAt, g.ID)
	if err != nil {
		return err
	}
	t.group = g
	return nil
}

func (t *groupTx) AdjustMemberCount(ctx context.Context, delta int) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE groups SET member_count = member_count + $1, updated_at = now() WHERE id = $2`,
		delta, t.group.ID,
	)
	if err != nil {
		return err
	}
	t.group.MemberCount += delta
	return nil
}
