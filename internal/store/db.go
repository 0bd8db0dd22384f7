package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed schema/*.sql
var schema embed.FS

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return &DB{Client: db}, db.PingContext(context.Background())
}

// Migrate applies the embedded schema files in name order. Statements are idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	entries, err := schema.ReadDir("schema")
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		body, err := schema.ReadFile("schema/" + name)
		if err != nil {
			return err
		}
		if _, err := d.Client.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
