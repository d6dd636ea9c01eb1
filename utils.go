package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"whatsapp-reminders/db"
	"whatsapp-reminders/handlers"
	"whatsapp-reminders/persistence"
	"whatsapp-reminders/utils"
)

// openStore apre il backend di persistenza scelto in configurazione.
// Con MySQL le migrazioni vengono applicate all'avvio.
func openStore(ctx context.Context, cfg *utils.Config, logger zerolog.Logger) (handlers.ReminderStore, error) {
	switch cfg.Store.Backend {
	case utils.BackendMySQL:
		store, err := db.NewMySQLStore(cfg.Database.GetDSN(), logger)
		if err != nil {
			return nil, err
		}
		if err := store.ApplyMigrations(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil

	case utils.BackendRedis:
		store, err := persistence.NewRedisStore(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.Prefix)
		if err != nil {
			return nil, err
		}
		return store, nil

	case utils.BackendBolt:
		store, err := persistence.NewBoltStore(cfg.Bolt.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("backend di persistenza sconosciuto: %q", cfg.Store.Backend)
}
