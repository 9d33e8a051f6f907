package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/campuschat/internal/database"
	"github.com/vedran77/campuschat/internal/domain"
	"github.com/vedran77/campuschat/internal/repository"
	"github.com/vedran77/campuschat/internal/repository/repotest"
)

var (
	_ repository.UserRepository         = (*UserRepo)(nil)
	_ repository.MessageRepository      = (*MessageRepo)(nil)
	_ repository.GroupRepository        = (*GroupRepo)(nil)
	_ repository.ConversationRepository = (*ConversationRepo)(nil)
)

// Needs a disposable database: tables are truncated between cases.
func TestPostgresRepositories(t *testing.T) {
	dsn := os.Getenv("CAMPUSCHAT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CAMPUSCHAT_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	if _, err := database.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	repotest.Run(t, func(t *testing.T) *repotest.Backend {
		if _, err := pool.Exec(ctx, `TRUNCATE messages, group_members, groups, users CASCADE`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return &repotest.Backend{
			Users:         NewUserRepo(pool),
			Messages:      NewMessageRepo(pool),
			Groups:        NewGroupRepo(pool),
			Conversations: NewConversationRepo(pool),
			PutUser: func(t *testing.T, u domain.User) {
				_, err := pool.Exec(ctx,
					`INSERT INTO users (id, username, display_name, avatar_url, created_at) VALUES ($1, $2, $3, $4, $5)`,
					u.ID, u.Username, u.DisplayName, u.AvatarURL, u.CreatedAt)
				if err != nil {
					t.Fatalf("insert user: %v", err)
				}
			},
		}
	})
}
