// @title                       Habit Tracker API
// @version                     1.0
// @description                 Daily habits with streak tracking.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the JWT.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/streakup/habit-tracker/internal/api"
	"github.com/streakup/habit-tracker/internal/api/metrics"
	"github.com/streakup/habit-tracker/internal/core/ports"
	"github.com/streakup/habit-tracker/internal/core/service"
	"github.com/streakup/habit-tracker/internal/infrastructure/config"
	redisdb "github.com/streakup/habit-tracker/internal/infrastructure/db/redis"
	"github.com/streakup/habit-tracker/internal/infrastructure/queue"
	"github.com/streakup/habit-tracker/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "habit-tracker:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx, ".env")
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "habit-tracker",
	})

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	reg := api.NewRegistry()
	m, err := metrics.Register(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()
	dispatcher := queue.NewDispatcher(cfg.CompletionWorkers, log, queue.WithDepthGauge(m.QueueDepth))
	dispatcher.Start(workCtx)

	opts := []service.HabitOption{
		service.WithLocation(loc),
		service.WithSerializer(dispatcher),
		service.WithCompletionObserver(m.ObserveCompletion),
	}
	if lock := connectLock(ctx, cfg, log, st); lock != nil {
		opts = append(opts, service.WithLocker(lock))
	}

	tokens := service.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL, time.Now)
	hasher := service.NewBcryptHasher(cfg.Auth.BcryptCost)

	router := api.NewRouter(api.RouterConfig{
		Auth:     service.NewAuthService(st.users, hasher, tokens, log),
		Habits:   service.NewHabitService(st.habits, log, opts...),
		Tokens:   tokens,
		Users:    st.users,
		Registry: reg,
		Metrics:  m,
		CORS:     cfg.CORS,
		Checks:   st.checks,
		Log:      log,
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("storage", cfg.StorageDriver).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		cancelWork()
		dispatcher.Wait()
		if err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

// connectLock returns the cross-replica completion lock, or nil when Redis is
// not configured or unreachable at start-up.
func connectLock(ctx context.Context, cfg *config.Config, log zerolog.Logger, st *store) ports.Locker {
	if cfg.Redis.Addr == "" {
		return nil
	}

	client, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, completions serialized in-process only")
		return nil
	}

	st.checks["redis"] = redisdb.NewPinger(client)
	st.closers = append(st.closers, func() { _ = client.Close() })
	return redisdb.NewCompletionLock(client, cfg.Redis.LockTTL, cfg.Redis.LockWait, log)
}
