package main

import (
	"os"
	"path/filepath"
	"strings"

	"bookcatalog/internal/config"
)

// loadConfig resolves the store settings exactly as the api binary does
// (.env files, then environment, then defaults). A non-empty driver flag
// replaces STORE_DRIVER.
func loadConfig(driverFlag string) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if d := strings.ToLower(strings.TrimSpace(driverFlag)); d != "" {
		cfg.StoreDriver = d
	}
	return cfg, nil
}

// migrationsDir returns the directory holding the migrations of driver.
func migrationsDir(driver string) string {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return filepath.Join("db", "migrations", driver)
}
