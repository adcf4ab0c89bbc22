package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cimillas/mentor-booking/services/reservations/internal/app"
	"github.com/cimillas/mentor-booking/services/reservations/internal/clock"
	"github.com/cimillas/mentor-booking/services/reservations/internal/config"
	"github.com/cimillas/mentor-booking/services/reservations/internal/events"
	"github.com/cimillas/mentor-booking/services/reservations/internal/lock"
	"github.com/cimillas/mentor-booking/services/reservations/internal/logger"
	"github.com/cimillas/mentor-booking/services/reservations/internal/scheduler"
	"github.com/cimillas/mentor-booking/services/reservations/internal/storage/postgres"
	transporthttp "github.com/cimillas/mentor-booking/services/reservations/internal/transport/http"
	"github.com/cimillas/mentor-booking/services/reservations/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const serviceName = "reservations"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Config{Service: serviceName}).Fatal("load config", "error", err)
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: serviceName,
	})
	if cfg.EnvFile == "" {
		log.Warn(".env not found in current or parent directories, using process environment")
	} else {
		log.Info("loaded env file", "path", cfg.EnvFile)
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("connect to db", "error", err)
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		log.Fatal("db ping", "error", err)
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		log.Fatal("apply migrations", "error", err)
	}

	clk := clock.NewSystem()
	health := map[string]transporthttp.Pinger{"postgres": pool}

	var locks lock.Manager
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		if err := rdb.Ping(startupCtx).Err(); err != nil {
			log.Warn("redis ping failed, holds fall back to row locks until it recovers", "addr", cfg.RedisAddr, "error", err)
		}
		locks = lock.NewRedisManager(rdb, lock.WithPrefix(cfg.LockPrefix))
		health["redis"] = transporthttp.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	} else {
		log.Warn("REDIS_ADDR not set, slot leases are kept in process memory")
		locks = lock.NewMemoryManager(clk, lock.DefaultTTL)
	}

	var publisher app.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		}, log.Logger)
		if err != nil {
			log.Fatal("create kafka publisher", "error", err)
		}
		defer func() {
			if err := kp.Close(); err != nil {
				log.Error("close kafka publisher", "error", err)
			}
		}()
		publisher = kp
	} else {
		log.Warn("KAFKA_BROKERS not set, booking events are only logged")
		publisher = events.NewLogPublisher(log.Logger)
	}

	repo := postgres.NewReservationRepository(pool)
	opts := []app.Option{app.WithEvents(publisher), app.WithLogger(log.Logger)}
	engine := app.NewReservationService(repo, locks, clk, opts...)
	reconciler := app.NewExpiryReconciler(repo, clk, opts...)
	schedule := app.NewScheduleService(repo, reconciler, clk, opts...)

	var sched *scheduler.Scheduler
	if cfg.ReconcileSchedule != "" {
		sched, err = scheduler.New(cfg.ReconcileSchedule, reconciler, log.Logger)
		if err != nil {
			log.Fatal("create reconcile scheduler", "error", err)
		}
		sched.Start()
		log.Info("reconcile scheduler started", "schedule", cfg.ReconcileSchedule)
	} else {
		log.Warn("RECONCILE_SCHEDULE empty, lapsed holds are only released on read paths")
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := transporthttp.NewLimiterStore(cfg.HoldRateRPS, cfg.HoldRateBurst)
	limiter.StartJanitor(stopCtx, time.Minute)

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: transporthttp.NewRouter(transporthttp.RouterConfig{
			Engine:      engine,
			Schedule:    schedule,
			Sweeper:     reconciler,
			HoldLimiter: limiter,
			Health:      health,
			CORSOrigins: cfg.CORSOrigins,
			Logger:      log.Logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelError),
	}

	log.Info("api listening", "port", cfg.Port)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
		}
	case <-stopCtx.Done():
		log.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server shutdown error", "error", err)
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			log.Error("scheduler stop", "error", err)
		}
	}
	log.Info("server stopped")
}
