// Package store opens the record store selected by configuration.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	_ "modernc.org/sqlite"

	"bookcatalog/db/migrations"
	"bookcatalog/internal/book"
	"bookcatalog/internal/config"
	"bookcatalog/internal/logger"
)

// Store is an opened record store together with its release function.
type Store struct {
	Repo   book.Repository
	Driver string
	close  func()
}

func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// Open connects to the store named by cfg.StoreDriver and checks that it
// answers. The SQLite schema is migrated on open since the file may be new.
func Open(ctx context.Context, cfg config.Config) (*Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		return openPostgres(ctx, cfg)
	case config.DriverSQLite:
		return openSQLite(ctx, cfg)
	case config.DriverMongo:
		return openMongo(ctx, cfg)
	case config.DriverMemory:
		return &Store{Repo: book.NewMemoryRepo(), Driver: config.DriverMemory}, nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.StoreDriver)
	}
}

func openPostgres(ctx context.Context, cfg config.Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	poolCfg.ConnConfig.Tracer = logger.NewPGXTracer()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.DBTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping postgres (%s): %w", RedactDSN(cfg.DatabaseDSN), err)
	}
	slog.InfoContext(ctx, "database connection OK", "driver", config.DriverPostgres)

	return &Store{
		Repo:   book.NewPostgresRepo(pool, cfg.DBTimeout),
		Driver: config.DriverPostgres,
		close:  pool.Close,
	}, nil
}

func openSQLite(ctx context.Context, cfg config.Config) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	migrateCtx, cancel := context.WithTimeout(ctx, 4*cfg.DBTimeout)
	defer cancel()
	if err := migrations.Up(migrateCtx, db, config.DriverSQLite); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate sqlite: %w", err)
	}
	slog.InfoContext(ctx, "database connection OK", "driver", config.DriverSQLite, "path", cfg.SQLitePath)

	return &Store{
		Repo:   book.NewSQLiteRepo(db, cfg.DBTimeout),
		Driver: config.DriverSQLite,
		close:  func() { _ = db.Close() },
	}, nil
}

func openMongo(ctx context.Context, cfg config.Config) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.DBTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("store: connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("store: ping mongo (%s): %w", RedactDSN(cfg.MongoURI), err)
	}
	slog.InfoContext(ctx, "database connection OK", "driver", config.DriverMongo, "database", cfg.MongoDB)

	return &Store{
		Repo:   book.NewMongoRepo(client.Database(cfg.MongoDB), cfg.DBTimeout),
		Driver: config.DriverMongo,
		close: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		},
	}, nil
}

// RedactDSN hides the credentials of a connection string.
func RedactDSN(dsn string) string {
	const marker = "://"
	start := strings.Index(dsn, marker)
	if start < 0 {
		return dsn
	}
	start += len(marker)
	end := strings.Index(dsn[start:], "@")
	if end < 0 {
		return dsn
	}
	return dsn[:start] + "***" + dsn[start+end:]
}
