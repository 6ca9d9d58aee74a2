// yamiistored runs the encrypted user-data store: it initializes the master
// key, connects the database pool, applies migrations, and keeps the
// retention purger running until the process is signalled.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/yamisskey-dev/yamii-sub001/internal/config"
	"github.com/yamisskey-dev/yamii-sub001/internal/crypto"
	"github.com/yamisskey-dev/yamii-sub001/internal/platform"
	"github.com/yamisskey-dev/yamii-sub001/internal/storage"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := run(log); err != nil {
		log.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	// The process holds the master key; a core dump must never capture it.
	if err := platform.DisableCoreDumps(); err != nil {
		log.Warn("could not disable core dumps", "err", err)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	masterKey, err := crypto.LoadOrCreateMasterKey(cfg.KeyFile, []byte(os.Getenv("YAMII_KEY_MATERIAL")))
	if err != nil {
		return err
	}
	defer crypto.Zero(masterKey)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.NewPostgres(ctx, storage.PoolConfig{
		DSN:            cfg.DSN(),
		MaxConns:       cfg.PoolMaxConns,
		MinConns:       cfg.PoolMinConns,
		AcquireTimeout: cfg.AcquireTimeout,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	log.Info("store ready",
		"db", cfg.DBName,
		"pool_max_conns", cfg.PoolMaxConns,
		"retention_days", cfg.RetentionDays)

	purger := storage.NewPurger(db, cfg.Retention(), cfg.PurgeInterval, log)
	purger.Run(ctx)

	log.Info("shutting down")
	return nil
}
