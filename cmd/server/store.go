package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"nerdsphere/domain"
	"nerdsphere/infrastructure/lock"
	"nerdsphere/internal"
	"nerdsphere/repositories"

	"github.com/dgraph-io/badger/v4"
)

type store struct {
	repository repositories.IMessageRepository
	// badger is set only for the embedded store, the debug inspector reads it
	badger *badger.DB
	close  func() error
}

func openStore(ctx context.Context, log *slog.Logger, config internal.Config) (store, error) {
	ttl := config.RetentionTTL(domain.RetentionHorizon)

	switch config.Store {
	case internal.StoreSQLite:
		if err := os.MkdirAll(filepath.Dir(config.SQLiteFilepath), 0o755); err != nil {
			return store{}, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
		db, err := repositories.OpenSQLite(ctx, config.SQLiteFilepath)
		if err != nil {
			return store{}, err
		}
		return store{
			repository: repositories.NewSQLiteMessageRepository(db, log),
			close:      db.Close,
		}, nil

	case internal.StoreMongo:
		client, err := repositories.ConnectMongo(ctx, config.MongoURI, config.StoreTimeout)
		if err != nil {
			return store{}, err
		}
		repository := repositories.NewMongoMessageRepository(client.Database(config.MongoDatabase), log)
		if err := repository.EnsureIndexes(ctx, ttl); err != nil {
			_ = client.Disconnect(context.Background())
			return store{}, err
		}
		return store{
			repository: repository,
			close:      func() error { return client.Disconnect(context.Background()) },
		}, nil

	default:
		db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
			WithLoggingLevel(badger.WARNING))
		if err != nil {
			return store{}, fmt.Errorf("database opening failed: %w", err)
		}
		return store{
			repository: repositories.NewBadgerMessageRepository(db, log, ttl),
			badger:     db,
			close:      db.Close,
		}, nil
	}
}

// openLocker returns the in-process locker unless several instances share the store.
func openLocker(ctx context.Context, log *slog.Logger, config internal.Config) (lock.Locker, func(), error) {
	if config.Lock != internal.LockRedis {
		return lock.NewLocal(), func() {}, nil
	}
	client, err := lock.ConnectRedis(ctx, config.RedisAddr, config.RedisUsername, config.RedisPassword)
	if err != nil {
		return nil, nil, err
	}
	log.Info("Using redis leases for per fingerprint serialization", "addr", config.RedisAddr)
	return lock.NewRedis(client, log, config.LockTTL), func() { _ = client.Close() }, nil
}
