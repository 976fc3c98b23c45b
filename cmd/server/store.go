package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/streakup/habit-tracker/internal/api/handler"
	"github.com/streakup/habit-tracker/internal/core/ports"
	"github.com/streakup/habit-tracker/internal/infrastructure/config"
	"github.com/streakup/habit-tracker/internal/infrastructure/db/memory"
	mongodb "github.com/streakup/habit-tracker/internal/infrastructure/db/mongo"
	"github.com/streakup/habit-tracker/internal/infrastructure/db/postgres"
)

// store bundles the repositories of the configured driver with their
// readiness checks and cleanup.
type store struct {
	users   ports.UserRepository
	habits  ports.HabitRepository
	checks  map[string]handler.Pinger
	closers []func()
}

func (s *store) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*store, error) {
	st := &store{checks: make(map[string]handler.Pinger)}

	switch cfg.StorageDriver {
	case config.DriverMongo:
		client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, func() { _ = client.Disconnect(context.Background()) })

		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			st.close()
			return nil, err
		}
		st.users = mongodb.NewUserRepository(db)
		st.habits = mongodb.NewHabitRepository(db)
		st.checks["mongo"] = mongodb.NewPinger(db)

	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, func() { _ = db.Close() })

		if err := postgres.RunMigrations(ctx, db); err != nil {
			st.close()
			return nil, err
		}
		st.users = postgres.NewUserRepository(db)
		st.habits = postgres.NewHabitRepository(db)
		st.checks["postgres"] = postgres.NewPinger(db)

	case config.DriverMemory:
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		st.users = memory.NewUserRepository()
		st.habits = memory.NewHabitRepository()

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	log.Info().Str("driver", cfg.StorageDriver).Msg("storage ready")
	return st, nil
}
