package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"teamboard/config"
	"teamboard/internal/agent"
	"teamboard/internal/calendar"
	"teamboard/internal/extract"
	"teamboard/internal/handler"
	"teamboard/internal/httpserver"
	"teamboard/internal/realtime"
	"teamboard/internal/repository"
	"teamboard/internal/service"
	pkgconfig "teamboard/pkg/config"
	"teamboard/pkg/db"
	"teamboard/pkg/logger"
	"teamboard/pkg/mq"
	"teamboard/pkg/rbac"
	redisclient "teamboard/pkg/redis"
)

func main() {
	cfg, err := config.Load(pkgconfig.GetConfigEnv(), pkgconfig.GetEnv("CONFIG_DIR", "config"))
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger(cfg.Log)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()
	if err := repository.Migrate(ctx, dbConn); err != nil {
		log.Fatal("Schema migration failed", zap.Error(err))
	}

	userRepo := repository.NewUserRepository(dbConn, log)
	projectRepo := repository.NewProjectRepository(dbConn, log)
	taskRepo := repository.NewTaskRepository(dbConn, log)

	readiness := []httpserver.ReadinessCheck{{Name: "db", Check: dbConn.Ping}}

	// Realtime hub, optionally mirrored across instances over Redis
	hub := realtime.NewHub(log)
	if cfg.Realtime.RedisRelay {
		rdb, err := redisclient.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Fatal("Redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()

		relay := realtime.NewRedisRelay(rdb, cfg.Realtime.Channel, log)
		hub.SetRelay(relay)
		ready := make(chan struct{})
		relayErr := make(chan error, 1)
		go func() { relayErr <- relay.Run(ctx, hub, ready) }()
		select {
		case <-ready:
		case err := <-relayErr:
			log.Fatal("Broadcast relay failed to subscribe", zap.Error(err))
		}
		go func() {
			if err := <-relayErr; err != nil {
				log.Error("Broadcast relay stopped", zap.Error(err))
			}
		}()
		readiness = append(readiness, httpserver.ReadinessCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}

	// task.created 事件发布（可选）
	var events service.EventPublisher
	if cfg.MQ.Enabled {
		publisher, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			log.Fatal("Failed to init MQ publisher", zap.Error(err))
		}
		defer publisher.Close()
		events = publisher
		readiness = append(readiness, httpserver.ReadinessCheck{
			Name: "mq",
			Check: func(context.Context) error {
				if !publisher.IsConnected() {
					return errors.New("publisher disconnected")
				}
				return nil
			},
		})
	}

	var authz service.Authorizer = rbac.AllowAll{}
	if cfg.Auth.Policy == "role_based" {
		authz = rbac.NewRoleBased(userRepo.Role)
	}

	classifier := agent.NewClient(cfg.Agent.URL, cfg.Agent.Timeout, log)
	calendarClient := calendar.NewClient(cfg.Calendar, log)

	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.TTL, log)
	projectService := service.NewProjectService(projectRepo, taskRepo, userRepo, hub, authz, log)
	taskService := service.NewTaskService(taskRepo, projectRepo, userRepo, hub, events, classifier, authz, log)
	assistant := service.NewAssistant(classifier, extract.New(), projectService, taskService, projectRepo, authz, log)
	leaderboard := service.NewLeaderboardService(taskRepo, projectRepo, userRepo)
	calendarService := service.NewCalendarService(userRepo, calendarClient, log)

	router := httpserver.NewRouter(httpserver.Handlers{
		Auth:        handler.NewAuthHandler(authService, log),
		Projects:    handler.NewProjectHandler(projectService, log),
		Tasks:       handler.NewTaskHandler(taskService, log),
		Assistant:   handler.NewAssistantHandler(assistant, cfg.Upload.MaxBytes, log),
		Leaderboard: handler.NewLeaderboardHandler(leaderboard, log),
		Calendar:    handler.NewCalendarHandler(calendarService, log),
		WS:          realtime.NewWSHandler(hub, authService.VerifyToken, cfg.Realtime.ClientBuffer, log),
	}, cfg.JWT.Secret, readiness, log)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down API gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 等待后台状态修正写完
	projectService.WaitHeals()
	log.Info("API shutdown complete")
}
