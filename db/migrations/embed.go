// Package migrations holds the goose schema migrations for the SQL stores.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS

// Drivers lists the store drivers that have SQL migrations.
var Drivers = []string{"postgres", "sqlite"}

// DialectFor maps a store driver to its goose dialect.
func DialectFor(driver string) (goose.Dialect, error) {
	switch driver {
	case "postgres":
		return goose.DialectPostgres, nil
	case "sqlite":
		return goose.DialectSQLite3, nil
	default:
		return "", fmt.Errorf("no migrations for driver %q", driver)
	}
}

// Dir returns the embedded migration directory for a store driver.
func Dir(driver string) (fs.FS, goose.Dialect, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, "", err
	}
	sub, err := fs.Sub(FS, driver)
	if err != nil {
		return nil, "", err
	}
	return sub, dialect, nil
}

// Up applies every pending embedded migration for driver.
func Up(ctx context.Context, db *sql.DB, driver string) error {
	fsys, dialect, err := Dir(driver)
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return err
	}
	_, err = provider.Up(ctx)
	return err
}
