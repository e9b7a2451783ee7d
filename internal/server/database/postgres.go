package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations contains all database migrations in order.
// Each migration has a version key and SQL to execute.
var migrations = []struct {
	Version string
	SQL     string
}{
	{
		Version: "000001_create_users",
		SQL: `
			CREATE TABLE IF NOT EXISTS users (
				id            UUID         PRIMARY KEY,
				username      TEXT         NOT NULL UNIQUE,
				password_hash TEXT         NOT NULL
			);
		`,
	},
	{
		Version: "000002_create_projects",
		SQL: `
			CREATE TABLE IF NOT EXISTS projects (
				id             UUID          PRIMARY KEY,
				title          TEXT          NOT NULL,
				description    TEXT          NOT NULL,
				location       TEXT          NOT NULL,
				status         VARCHAR(20)   NOT NULL DEFAULT 'active',
				target_amount  NUMERIC(10,2),
				current_amount NUMERIC(10,2) NOT NULL DEFAULT 0.00,
				impact_metric  TEXT,
				image_url      TEXT,
				is_featured    BOOLEAN       NOT NULL DEFAULT FALSE,
				created_at     TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
				updated_at     TIMESTAMPTZ   NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_projects_is_featured ON projects(is_featured);
		`,
	},
	{
		Version: "000003_create_donations",
		SQL: `
			CREATE TABLE IF NOT EXISTS donations (
				id             UUID          PRIMARY KEY,
				amount         NUMERIC(10,2) NOT NULL CHECK (amount > 0),
				currency       VARCHAR(3)    NOT NULL DEFAULT 'ZAR',
				donor_name     TEXT,
				donor_email    TEXT,
				project_id     UUID          REFERENCES projects(id),
				payment_method VARCHAR(50)   NOT NULL DEFAULT 'tap',
				status         VARCHAR(20)   NOT NULL DEFAULT 'completed',
				created_at     TIMESTAMPTZ   NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_donations_project_id ON donations(project_id);
			CREATE INDEX IF NOT EXISTS idx_donations_created_at ON donations(created_at);
		`,
	},
	{
		Version: "000004_create_system_stats",
		SQL: `
			CREATE TABLE IF NOT EXISTS system_stats (
				id             INTEGER       PRIMARY KEY,
				total_raised   NUMERIC(12,2) NOT NULL DEFAULT 0.00,
				total_donors   INTEGER       NOT NULL DEFAULT 0,
				total_projects INTEGER       NOT NULL DEFAULT 0,
				updated_at     TIMESTAMPTZ   NOT NULL DEFAULT NOW()
			);
		`,
	},
}

// DB wraps a pgxpool connection pool and provides health checks and migrations.
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("connected to database")
	return &DB{Pool: pool}, nil
}

// RunMigrations applies all pending database migrations in order.
func (db *DB) RunMigrations(ctx context.Context) error {
	// Create migrations tracking table
	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range migrations {
		// Check if already applied
		var exists bool
		err := db.Pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			m.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration status for %s: %w", m.Version, err)
		}
		if exists {
			continue
		}

		// Execute migration in a transaction
		tx, err := db.Pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to execute migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.Version); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.Version, err)
		}

		slog.Info("applied migration", "version", m.Version)
	}

	return nil
}

// HealthCheck verifies the database connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
