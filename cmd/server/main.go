package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/ndrop/config"
	"github.com/d60-Lab/ndrop/internal/api"
	"github.com/d60-Lab/ndrop/internal/api/handler"
	"github.com/d60-Lab/ndrop/internal/repository"
	"github.com/d60-Lab/ndrop/internal/service"
	"github.com/d60-Lab/ndrop/pkg/database"
	"github.com/d60-Lab/ndrop/pkg/logger"
	"github.com/d60-Lab/ndrop/pkg/tracing"
)

// @title ndrop API
// @version 1.0
// @description 交流会数字名片与会面撮合服务
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN}); err != nil {
			logger.Warn("sentry init failed", zap.Error(err))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx := context.Background()
	shutdownTracing, err := tracing.Init(ctx, cfg)
	if err != nil {
		logger.Error("tracing init failed", zap.Error(err))
	} else {
		defer func() { _ = shutdownTracing(ctx) }()
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Error("database init failed", zap.Error(err))
		os.Exit(1)
	}
	privDB, err := database.InitPrivilegedDB(cfg)
	if err != nil {
		logger.Warn("privileged database unavailable, notification dispatch will rely on the standard path", zap.Error(err))
	}

	var cache *redis.Client
	if cfg.Redis.Addr != "" {
		cache = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := cache.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, directory cache disabled", zap.Error(err))
			cache = nil
		}
	}

	userRepo := repository.NewUserRepository(db)
	eventRepo := repository.NewEventRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	slotRepo := repository.NewSlotRepository(db)
	meetingRepo := repository.NewMeetingRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	matchRepo := repository.NewMatchRepository(db)

	// 特权路径使用独立凭证的连接；未配置时退化为主连接
	var privileged service.NotificationWriter
	if privDB != nil {
		privileged = service.RepoWriter{Repo: repository.NewNotificationRepository(privDB)}
	} else {
		privileged = service.RepoWriter{Repo: notifRepo}
	}
	standard := service.PolicyWriter{Repo: notifRepo}

	fanout := service.NewNotificationFanout(participantRepo, notifRepo, cfg.Notify.FanoutQueueSize)
	stopFanout := fanout.Start(cfg.Notify.FanoutWorkers)
	defer func() { _ = stopFanout(ctx) }()

	notifier := service.NewNotifier(privileged, standard, fanout)
	directory := service.NewDirectory(userRepo, participantRepo, cache, cfg.Redis.CacheTTL)
	authSvc := service.NewAuthService(userRepo, directory, cfg.JWT.Secret, cfg.JWT.TTL)
	eventSvc := service.NewEventService(eventRepo, participantRepo, slotRepo, directory)
	meetingSvc := service.NewMeetingService(meetingRepo, messageRepo, slotRepo, eventRepo, directory, notifier)
	matchingSvc := service.NewMatchingService(matchRepo, meetingRepo, eventRepo, directory, notifier, service.MatchingConfig{
		MaxRequestsPerUser: cfg.Matching.MaxRequestsPerUser,
		InterestWeight:     cfg.Matching.InterestWeight,
		WorkFieldWeight:    cfg.Matching.WorkFieldWeight,
	}, nil)

	h := handler.New(authSvc, eventSvc, meetingSvc, matchingSvc, notifRepo)
	router := api.NewRouter(cfg, h)

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router}
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
