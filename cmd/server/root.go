package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/vedran77/campuschat/internal/config"
	"github.com/vedran77/campuschat/internal/database"
	"github.com/vedran77/campuschat/internal/logger"
	"github.com/vedran77/campuschat/internal/repository"
	"github.com/vedran77/campuschat/internal/repository/memory"
	postgresrepo "github.com/vedran77/campuschat/internal/repository/postgres"
	"go.uber.org/zap"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "campuschat",
	Short: "Messaging backend for the campus marketplace",
	Long: `campuschat stores private and group messages, manages group
membership and pushes new messages to connected clients over WebSocket.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (yaml, optional)")
}

type app struct {
	cfg *config.Config
	log *zap.Logger
}

func loadRuntime() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return &app{cfg: cfg, log: log}, nil
}

type repos struct {
	users         repository.UserRepository
	messages      repository.MessageRepository
	groups        repository.GroupRepository
	conversations repository.ConversationRepository
	close         func()

	// store is set for the memory driver only.
	store *memory.Store
}

// openRepos picks the storage backend from db.driver.
func (rt *app) openRepos(ctx context.Context) (*repos, error) {
	if rt.cfg.DB.Driver == "memory" {
		rt.log.Warn("using in-memory storage, data is lost on exit")
		store := memory.NewStore()
		return &repos{
			users:         memory.NewUserRepo(store),
			messages:      memory.NewMessageRepo(store),
			groups:        memory.NewGroupRepo(store),
			conversations: memory.NewConversationRepo(store),
			close:         func() {},
			store:         store,
		}, nil
	}

	pool, err := rt.connect(ctx)
	if err != nil {
		return nil, err
	}
	return &repos{
		users:         postgresrepo.NewUserRepo(pool),
		messages:      postgresrepo.NewMessageRepo(pool),
		groups:        postgresrepo.NewGroupRepo(pool),
		conversations: postgresrepo.NewConversationRepo(pool),
		close:         pool.Close,
	}, nil
}

func (rt *app) connect(ctx context.Context) (*pgxpool.Pool, error) {
	if rt.cfg.DB.Driver != "postgres" {
		return nil, fmt.Errorf("db.driver %q has no database to connect to", rt.cfg.DB.Driver)
	}
	pool, err := database.Connect(ctx, rt.cfg.DB)
	if err != nil {
		return nil, err
	}
	rt.log.Info("connected to database", zap.String("host", rt.cfg.DB.Host), zap.String("name", rt.cfg.DB.Name))
	return pool, nil
}
