package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/medportal/scheduling-service/internal/api"
	"github.com/medportal/scheduling-service/internal/appointment"
	"github.com/medportal/scheduling-service/internal/config"
	"github.com/medportal/scheduling-service/internal/db"
	"github.com/medportal/scheduling-service/internal/logger"
	"github.com/medportal/scheduling-service/internal/metrics"
	"github.com/medportal/scheduling-service/internal/notify"
	redisclient "github.com/medportal/scheduling-service/internal/redis"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logger.New("dev", "info")
		l.Fatal().Err(err).Msg("config load error")
	}

	log := logger.New(cfg.Env, cfg.LogLevel)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	mc := metrics.NewCollector("scheduling")
	repo := appointment.NewPgRepository(pgPool)
	locker := redisclient.NewRedisDoctorLocker(rdb, cfg.LockTTL)
	notifier := notify.NewRedisNotifier(rdb)
	svc := appointment.NewService(repo, locker, notifier, log, mc)
	slotGen := appointment.NewSlotGenerator(repo, cfg.SlotDuration, cfg.WorkdayStart, cfg.WorkdayEnd)

	router := api.NewRouter(api.RouterConfig{
		Service:        svc,
		SlotGenerator:  slotGen,
		SlotWindowDays: cfg.SlotWindowDays,
		PgPool:         pgPool,
		Redis:          rdb,
		Logger:         log,
		Metrics:        mc,
		Env:            cfg.Env,
		Version:        version,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	log.Info().Msg("api-server stopped")
}
