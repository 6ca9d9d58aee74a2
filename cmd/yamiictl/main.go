// yamiictl is the ops companion to yamiistored: key-pair generation for the
// E2EE path, fingerprinting, schema migration, and manual retention purges.
package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yamisskey-dev/yamii-sub001/internal/config"
	"github.com/yamisskey-dev/yamii-sub001/internal/crypto"
	"github.com/yamisskey-dev/yamii-sub001/internal/storage"
)

func main() {
	app := &cli.App{
		Name:  "yamiictl",
		Usage: "operate the yamii encrypted user-data store",
		Commands: []*cli.Command{
			{
				Name:  "keygen",
				Usage: "generate an X25519 key pair for the E2EE prompt path",
				Action: func(c *cli.Context) error {
					kp, err := crypto.GenerateKeyPair()
					if err != nil {
						return err
					}
					fmt.Printf("public:      %s\n", base64.StdEncoding.EncodeToString(kp.Public))
					fmt.Printf("private:     %s\n", base64.StdEncoding.EncodeToString(kp.Private))
					fmt.Printf("fingerprint: %s\n", crypto.Fingerprint(kp.Public))
					fmt.Fprintln(os.Stderr, "keep the private key client-side; the server must never see it")
					return nil
				},
			},
			{
				Name:  "fingerprint",
				Usage: "print the fingerprint of a base64 public key",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "pub", Required: true, Usage: "base64 X25519 public key"},
				},
				Action: func(c *cli.Context) error {
					pub, err := base64.StdEncoding.DecodeString(c.String("pub"))
					if err != nil {
						return fmt.Errorf("decode public key: %w", err)
					}
					fmt.Println(crypto.Fingerprint(pub))
					return nil
				},
			},
			{
				Name:  "migrate",
				Usage: "create tables and indexes",
				Action: func(c *cli.Context) error {
					db, err := connect(c.Context)
					if err != nil {
						return err
					}
					defer db.Close()
					return db.Migrate(c.Context)
				},
			},
			{
				Name:  "purge",
				Usage: "physically remove soft-deleted rows past the retention window",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "older-than", Value: 30 * 24 * time.Hour},
				},
				Action: func(c *cli.Context) error {
					db, err := connect(c.Context)
					if err != nil {
						return err
					}
					defer db.Close()
					cutoff := time.Now().Add(-c.Duration("older-than"))
					n, err := db.PurgeInactive(c.Context, cutoff, 500)
					if err != nil {
						return err
					}
					fmt.Printf("purged %d rows\n", n)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("yamiictl", "err", err)
		os.Exit(1)
	}
}

func connect(ctx context.Context) (*storage.Postgres, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	return storage.NewPostgres(ctx, storage.PoolConfig{
		DSN:            cfg.DSN(),
		MaxConns:       cfg.PoolMaxConns,
		MinConns:       cfg.PoolMinConns,
		AcquireTimeout: cfg.AcquireTimeout,
	})
}
