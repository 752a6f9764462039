package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"teamboard/config"
	mqcontracts "teamboard/contracts/mq"
	"teamboard/internal/calendar"
	"teamboard/internal/mqhandler"
	"teamboard/internal/repository"
	"teamboard/internal/service"
	pkgconfig "teamboard/pkg/config"
	"teamboard/pkg/db"
	"teamboard/pkg/logger"
	"teamboard/pkg/mq"
	redisclient "teamboard/pkg/redis"
	"teamboard/pkg/util"
)

const calendarQueue = "task.created.calendar.q"

func main() {
	cfg, err := config.Load(pkgconfig.GetConfigEnv(), pkgconfig.GetEnv("CONFIG_DIR", "config"))
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger(cfg.Log)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting worker...", zap.String("mq_url", cfg.MQ.URL))

	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	rdb, err := redisclient.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatal("Redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	userRepo := repository.NewUserRepository(dbConn, log)
	calendarService := service.NewCalendarService(userRepo, calendar.NewClient(cfg.Calendar, log), log)

	calendarHandler := mqhandler.NewTaskCreatedCalendarHandler(
		calendarService,
		util.NewDeduper(rdb, 24*time.Hour, log),
		util.NewRetryCounter(rdb, time.Hour),
		log,
	)

	log.Info("Initializing MQ consumer for task.created...",
		zap.String("queue", calendarQueue),
		zap.String("routing_key", mqcontracts.RoutingKeyTaskCreated),
	)
	consumer, err := mq.NewConsumer(cfg.MQ.URL, calendarQueue, mqcontracts.RoutingKeyTaskCreated, log)
	if err != nil {
		log.Fatal("Failed to init consumer", zap.Error(err))
	}
	defer consumer.Close()
	consumer.SetHandler(calendarHandler.Handle)

	if err := consumer.StartConsuming(ctx); err != nil {
		log.Error("task.created consumer stopped", zap.Error(err))
	}
	log.Info("Worker shutdown complete")
}
