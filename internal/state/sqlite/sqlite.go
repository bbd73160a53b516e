// Package sqlite stores state records in a single-table SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/gamedeck/internal/state"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// Backend implements state.Backend on top of SQLite.
type Backend struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and prepares the schema.
func Open(ctx context.Context, path string) (*Backend, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &Backend{db: db}, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS state_records (
		name TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		updated_at DATETIME NOT NULL
	);`
	_, err := db.ExecContext(ctx, query)
	return err
}

func (b *Backend) Load(ctx context.Context, record state.Record) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx,
		`SELECT data FROM state_records WHERE name = ?`, string(record)).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load %s: %w", record, err)
	}
	return data, nil
}

func (b *Backend) Save(ctx context.Context, record state.Record, data []byte) error {
	query := `
		INSERT INTO state_records (name, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at`

	if _, err := b.db.ExecContext(ctx, query, string(record), data, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save %s: %w", record, err)
	}
	return nil
}

// Ping checks that the database file is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *Backend) Close() error {
	return b.db.Close()
}

var _ state.Backend = (*Backend)(nil)
