package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"bookcatalog/db/migrations"
	"bookcatalog/internal/config"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, status, create")
		name    = flag.String("name", "", "Name for 'create' command")
		driver  = flag.String("driver", "", "Store driver: postgres or sqlite (default STORE_DRIVER)")
	)
	flag.Parse()

	cfg, err := loadConfig(*driver)
	if err != nil {
		log.Fatal(err)
	}
	dialect, err := migrations.DialectFor(cfg.StoreDriver)
	if err != nil {
		log.Fatal(err)
	}
	dir := migrationsDir(cfg.StoreDriver)

	if *command == "create" {
		if *name == "" {
			log.Fatal("Name is required for 'create' command")
		}
		if err := goose.Create(nil, dir, *name, "sql"); err != nil {
			log.Fatalf("Failed to create migration: %v", err)
		}
		fmt.Printf("Migration created: %s\n", *name)
		return
	}

	ctx := context.Background()
	db, closeDB := openDB(ctx, cfg)
	defer closeDB()

	provider, err := goose.NewProvider(dialect, db, os.DirFS(dir))
	if err != nil {
		log.Fatalf("Failed to load migrations from %s: %v", dir, err)
	}

	switch *command {
	case "up":
		results, err := provider.Up(ctx)
		if err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		fmt.Printf("Migrations applied successfully (%d)\n", len(results))
	case "down":
		if _, err := provider.Down(ctx); err != nil {
			log.Fatalf("Failed to rollback migrations: %v", err)
		}
		fmt.Println("Migrations rolled back successfully")
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			log.Fatalf("Failed to check migration status: %v", err)
		}
		for _, s := range statuses {
			fmt.Printf("%05d  %-8s  %s\n", s.Source.Version, s.State, s.Source.Path)
		}
	default:
		log.Fatalf("Unknown command: %s. Use: up, down, status, create", *command)
	}
}

func openDB(ctx context.Context, cfg config.Config) (*sql.DB, func()) {
	if cfg.StoreDriver == config.DriverSQLite {
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to open sqlite database: %v", err)
		}
		return db, func() { _ = db.Close() }
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	db := stdlib.OpenDBFromPool(pool)
	return db, func() {
		_ = db.Close()
		pool.Close()
	}
}
