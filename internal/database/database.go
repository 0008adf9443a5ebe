package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"commrouter/internal/migrations"
	"commrouter/internal/models"
	"commrouter/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the SQLite-backed store behind routing, telephony and intake
type Database struct {
	db        *sql.DB
	encryptor *encryptor
	now       func() time.Time
}

// New opens (creating when missing) the database at cfg.Path and applies the schema.
func New(cfg models.DatabaseConfig) (*Database, error) {
	if len(cfg.Path) == 0 || cfg.Path[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}
	if err := security.ValidateFilePath(cfg.Path); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(cfg.Path, os.O_RDWR|os.O_CREATE, 0600) // #nosec G304 - path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d, err := NewWithDB(db, cfg.EncryptionSecret)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("%w (close error: %v)", err, closeErr)
		}
		return nil, err
	}

	if err := d.Migrate(context.Background()); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("%w (close error: %v)", err, closeErr)
		}
		return nil, err
	}
	return d, nil
}

// NewWithDB wraps an open connection without touching the schema.
func NewWithDB(db *sql.DB, encryptionSecret string) (*Database, error) {
	enc, err := newEncryptor(encryptionSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}
	return &Database{db: db, encryptor: enc, now: time.Now}, nil
}

// Migrate applies the initial schema; every statement is idempotent.
func (d *Database) Migrate(ctx context.Context) error {
	schema, err := migrations.GetInitialSchema()
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *Database) Close() error {
	return d.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// queryStrings runs a single-column query and collects the values.
func (d *Database) queryStrings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := d.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
