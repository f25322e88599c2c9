package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(ctx context.Context, dbPath string, logger *slog.Logger) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	repo := &Repository{db: db, logger: logger}
	if err := repo.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) SQLDB() *sql.DB {
	if r == nil {
		return nil
	}
	return r.db
}

func (r *Repository) migrate(ctx context.Context) error {
	statements := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS locations (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS devices (
			id TEXT PRIMARY KEY,
			device_type TEXT NOT NULL,
			location INTEGER NOT NULL DEFAULT 0,
			title TEXT NOT NULL DEFAULT '',
			icon TEXT NOT NULL DEFAULT '',
			level TEXT NOT NULL DEFAULT '',
			last_level TEXT NOT NULL DEFAULT '',
			scale_title TEXT NOT NULL DEFAULT '',
			tags_json TEXT NOT NULL DEFAULT '[]',
			visibility INTEGER NOT NULL DEFAULT 1,
			permanently_hidden INTEGER NOT NULL DEFAULT 0,
			creator_id INTEGER NOT NULL DEFAULT 0,
			update_time INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS command_log (
			id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL,
			command TEXT NOT NULL,
			params_json TEXT NOT NULL DEFAULT '{}',
			source TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate failed: %w", err)
		}
	}
	if _, err := r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_command_log_device ON command_log(device_id);`); err != nil {
		return err
	}
	return nil
}

func parseTime(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

func formatTime(v time.Time) string {
	return v.UTC().Format(time.RFC3339Nano)
}

func encodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	body, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(body)
}

func decodeTags(v string) []string {
	out := []string{}
	if v == "" {
		return out
	}
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		return []string{}
	}
	return out
}

func encodeParams(params map[string]string) string {
	if len(params) == 0 {
		return "{}"
	}
	body, err := json.Marshal(params)
	if err != nil {
		return "{}"
	}
	return string(body)
}

func decodeParams(v string) map[string]string {
	out := map[string]string{}
	if err := json.Unmarshal([]byte(v), &out); err != nil || len(out) == 0 {
		return nil
	}
	return out
}
