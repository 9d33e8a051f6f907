package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/vedran77/campuschat/internal/auth"
	"github.com/vedran77/campuschat/internal/broadcast"
	"github.com/vedran77/campuschat/internal/domain"
	"github.com/vedran77/campuschat/internal/service"
	"github.com/vedran77/campuschat/internal/transport/http/handlers"
	"github.com/vedran77/campuschat/internal/transport/http/middleware"
	"github.com/vedran77/campuschat/internal/transport/ws"
	"go.uber.org/zap"
)

var demoUsers []string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API and WebSocket gateway",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringSliceVar(&demoUsers, "demo-users", nil, "usernames to create at startup (memory driver only)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	log := rt.log
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	repos, err := rt.openRepos(ctx)
	if err != nil {
		return err
	}
	defer repos.close()
	if err := rt.seedDemoUsers(repos); err != nil {
		return err
	}

	// Broadcast
	broker, err := rt.openBroker()
	if err != nil {
		return err
	}
	defer broker.Close()
	publisher := broadcast.NewPublisher(broker, rt.cfg.Broadcast, log.Named("broadcast"))

	hub := ws.NewHub(log.Named("ws"))
	go hub.Run(ctx)
	go func() {
		if err := broker.Subscribe(ctx, hub.Deliver); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("broker subscription ended", zap.Error(err))
		}
	}()

	// Services
	messageService := service.NewMessageService(repos.messages, repos.groups, repos.users)
	groupService := service.NewGroupService(repos.groups, repos.users)
	conversationService := service.NewConversationService(repos.conversations)

	// HTTP
	httpLog := log.Named("http")
	router := handlers.Router{
		Messages:      handlers.NewMessageHandler(messageService, publisher, httpLog),
		Groups:        handlers.NewGroupHandler(groupService, publisher, httpLog),
		Conversations: handlers.NewConversationHandler(conversationService, httpLog),
		WS:            ws.ServeWS(hub, groupService, rt.cfg.Auth.JWTSecret, log.Named("ws")),
		Auth:          middleware.Auth(rt.cfg.Auth.JWTSecret, rt.cfg.Auth.RequireToken),
		Limiter:       middleware.NewIPRateLimiter(ctx, rt.cfg.RateLimit.PerMinute, rt.cfg.RateLimit.Burst, httpLog),
		Log:           httpLog,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", rt.cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  rt.cfg.Server.ReadTimeout,
		WriteTimeout: rt.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr), zap.String("broker", rt.cfg.Broadcast.Broker), zap.String("db", rt.cfg.DB.Driver))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (rt *app) openBroker() (broadcast.Broker, error) {
	cfg := rt.cfg
	switch cfg.Broadcast.Broker {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.log.Info("using redis broker", zap.String("addr", cfg.Redis.Addr))
		return broadcast.NewRedisBroker(client, cfg.Redis.Prefix, rt.log.Named("redis")), nil
	case "kafka":
		rt.log.Info("using kafka broker", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
		return broadcast.NewKafkaBroker(cfg.Kafka.Brokers, cfg.Kafka.Topic, rt.log.Named("kafka")), nil
	case "local":
		return broadcast.NewLocalBroker(), nil
	}
	return nil, fmt.Errorf("unknown broker %q", cfg.Broadcast.Broker)
}

func (rt *app) seedDemoUsers(repos *repos) error {
	if len(demoUsers) == 0 {
		return nil
	}
	if repos.store == nil {
		return fmt.Errorf("--demo-users requires db.driver=memory")
	}
	for _, name := range demoUsers {
		u := domain.User{ID: uuid.New(), Username: name, DisplayName: name, CreatedAt: time.Now()}
		repos.store.PutUser(u)
		token, err := auth.IssueToken(u.ID, rt.cfg.Auth.JWTSecret, 24*time.Hour)
		if err != nil {
			return err
		}
		rt.log.Info("demo user", zap.String("username", name), zap.Stringer("id", u.ID), zap.String("token", token))
	}
	return nil
}
