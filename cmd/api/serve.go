package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"Niche_Community/internal/auth"
	"Niche_Community/internal/pkg"
	"Niche_Community/internal/repository/mysql"
	"Niche_Community/internal/repository/redis"
	"Niche_Community/internal/router"
	"Niche_Community/internal/service"
	"Niche_Community/internal/state"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	shutdownTimeout = 10 * time.Second
	relayLockTTL    = 30 * time.Second
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := mysql.InitDB(cfg.MySQLDSN); err != nil {
		return fmt.Errorf("connect mysql: %w", err)
	}
	// 自动建表（开发阶段 OK），生产用 migrate 子命令
	if err := mysql.AutoMigrate(mysql.DB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	// 连接redis
	if err := redis.Init(ctx, redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() { _ = redis.Close() }()

	primary := mysql.NewDocumentRepository(mysql.DB)
	realtime := redis.NewDocumentRepository(redis.Client)
	outbox := mysql.NewOutboxRepository(mysql.DB)

	tokens := pkg.NewTokenIssuer(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.IdentitySecret)
	provider := auth.NewProvider(tokens, redis.NewSessionRepository(redis.Client), log.Named("auth"))

	st := state.NewStore()
	board := service.NewLeaderboardService(primary, log.Named("leaderboard"))
	communities := service.NewCommunityService(primary, log.Named("community"))
	posts := service.NewPostService(primary, communities, log.Named("post"))
	profiles := service.NewProfileService(primary, posts, log.Named("profile"))
	unwatch := profiles.Watch(provider)
	defer unwatch()

	services := router.Services{
		Provider:      provider,
		Discussions:   service.NewDiscussionService(primary, st, outbox, board, log.Named("discussion")),
		Communities:   communities,
		Posts:         posts,
		Feed:          service.NewFeedService(primary),
		Polls:         service.NewPollService(primary, outbox, log.Named("poll")),
		Notifications: service.NewNotificationService(primary, realtime, log.Named("notification")),
		Profiles:      profiles,
		Leaderboard:   board,
	}

	// 未配置 Kafka 时事件只写日志
	sender := service.LogSender(log.Named("outbox"))
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		producer := pkg.NewKafkaProducer(pkg.KafkaConfig{Brokers: brokers, Topic: cfg.KafkaTopic})
		defer func() { _ = producer.Close() }()
		sender = service.KafkaSender(producer)
	}
	lock := &redis.DistLock{RDB: redis.Client, TTL: relayLockTTL}
	relayer := service.NewOutboxRelayer(outbox, lock, sender, cfg.OutboxInterval, log.Named("outbox"))
	go relayer.Run(ctx)

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.InitRouter(services, log.Named("http")),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
