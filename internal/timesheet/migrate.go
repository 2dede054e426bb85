package timesheet

import (
	"context"
	"database/sql"
	"fmt"
)

type migration struct {
	version int
	stmts   []string
}

// Schema history. Append only; never edit an applied step.
var migrations = []migration{
	{
		version: 1,
		stmts: []string{
			`CREATE TABLE users (
				id            BIGSERIAL PRIMARY KEY,
				username      TEXT UNIQUE NOT NULL,
				password_hash TEXT NOT NULL,
				role          TEXT NOT NULL DEFAULT 'worker' CHECK (role IN ('worker', 'admin')),
				created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE projects (
				id         BIGSERIAL PRIMARY KEY,
				name       TEXT UNIQUE NOT NULL,
				is_hidden  BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE work_entries (
				id          BIGSERIAL PRIMARY KEY,
				user_id     BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
				work_date   DATE NOT NULL,
				start_time  TEXT NOT NULL,
				end_time    TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				project_id  BIGINT REFERENCES projects (id) ON DELETE SET NULL,
				created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE work_entry_photos (
				id                BIGSERIAL PRIMARY KEY,
				work_entry_id     BIGINT NOT NULL REFERENCES work_entries (id) ON DELETE CASCADE,
				storage_key       TEXT NOT NULL,
				original_filename TEXT NOT NULL DEFAULT '',
				file_size         BIGINT NOT NULL DEFAULT 0,
				upload_order      INT NOT NULL DEFAULT 0,
				created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE INDEX idx_work_entries_user ON work_entries (user_id)`,
			`CREATE INDEX idx_work_entries_date ON work_entries (work_date)`,
			`CREATE INDEX idx_entry_photos_entry ON work_entry_photos (work_entry_id)`,
		},
	},
}

// Migrate applies pending schema versions in order. It runs before the
// server starts accepting requests; each version is applied in one
// transaction and recorded in schema_migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	row := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`)
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		for _, stmt := range m.stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d: %w", m.version, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}
	return nil
}
