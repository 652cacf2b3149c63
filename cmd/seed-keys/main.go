// Command seed-keys provisions API keys in the database. It hashes the
// provided plaintext keys with the configured pepper and upserts them, so it
// is safe to re-run against an already-seeded database.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chronoshop/orders-api/internal/repository"
)

const upsertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, name, user_id, scopes, active)
	VALUES ($1, $2, $3, $4, $5, TRUE)
	ON CONFLICT (id) DO UPDATE
	SET key_hash = EXCLUDED.key_hash, name = EXCLUDED.name,
	    user_id = EXCLUDED.user_id, scopes = EXCLUDED.scopes, active = TRUE`

func main() {
	var (
		databaseURL string
		userKey     string
		adminKey    string
		pepper      string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&userKey, "user-key", "", "customer API key to seed (or CHRONO_SEED_USER_KEY env)")
	flag.StringVar(&adminKey, "admin-key", "", "admin API key to seed (or CHRONO_SEED_ADMIN_KEY env)")
	flag.StringVar(&pepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or CHRONO_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if userKey == "" {
		userKey = os.Getenv("CHRONO_SEED_USER_KEY")
	}
	if adminKey == "" {
		adminKey = os.Getenv("CHRONO_SEED_ADMIN_KEY")
	}
	if userKey == "" && adminKey == "" {
		slog.Error("nothing to seed: set --user-key and/or --admin-key")
		os.Exit(1)
	}
	if pepper == "" {
		pepper = os.Getenv("CHRONO_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, userKey, adminKey, pepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, userKey, adminKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if userKey != "" {
		err := upsertKey(ctx, pool, "seed-user", "Seeded customer key", "seed-user", userKey, pepper,
			[]string{"orders"})
		if err != nil {
			return errors.Wrap(err, "seed user key")
		}
	}
	if adminKey != "" {
		err := upsertKey(ctx, pool, "seed-admin", "Seeded admin key", "seed-admin", adminKey, pepper,
			[]string{"orders", "admin"})
		if err != nil {
			return errors.Wrap(err, "seed admin key")
		}
	}

	return nil
}

func upsertKey(ctx context.Context, pool *pgxpool.Pool, id, name, userID, key, pepper string, scopes []string) error {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(key))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	if _, err := pool.Exec(ctx, upsertAPIKeySQL, id, keyHash, name, userID, scopes); err != nil {
		return errors.Wrapf(err, "upsert api key %s", id)
	}

	slog.Info("upserted API key", slog.String("id", id), slog.Any("scopes", scopes))
	return nil
}
