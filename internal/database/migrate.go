package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// Migrate applies all pending migrations
func (db *DB) Migrate(ctx context.Context) error {
	sqlDB, err := db.openGoose()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	db.logger.Info("database migrations applied")
	return nil
}

// MigrationStatus prints the state of every migration through goose's logger
func (db *DB) MigrationStatus(ctx context.Context) error {
	sqlDB, err := db.openGoose()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return goose.StatusContext(ctx, sqlDB, migrationsDir)
}

// openGoose returns a database/sql handle over the pool's connection config
func (db *DB) openGoose() (*sql.DB, error) {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	return stdlib.OpenDB(*db.Pool.Config().ConnConfig), nil
}
