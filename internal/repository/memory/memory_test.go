package memory

import (
	"testing"

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

func TestMemoryRepositories(t *testing.T) {
	repotest.Run(t, func(t *testing.T) *repotest.Backend {
		store := NewStore()
		return &repotest.Backend{
			Users:         NewUserRepo(store),
			Messages:      NewMessageRepo(store),
			Groups:        NewGroupRepo(store),
			Conversations: NewConversationRepo(store),
			PutUser:       func(_ *testing.T, u domain.User) { store.PutUser(u) },
		}
	})
}
