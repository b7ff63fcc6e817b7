package assignment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/veesix-networks/dhcp6d/pkg/config"
	"github.com/veesix-networks/dhcp6d/pkg/dhcp6/transaction"
	"github.com/veesix-networks/dhcp6d/pkg/provider"
)

func init() {
	Register("sqlite", func(cfg config.Assignments) (Source, error) {
		return OpenSQLite(cfg.Path)
	})
}

// SQLiteSource serves assignments from the assignments table of a SQLite
// database. The table is created if it does not exist.
type SQLiteSource struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteSource, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %s: %w", p, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS assignments (
			id TEXT NOT NULL PRIMARY KEY,
			address TEXT NOT NULL DEFAULT '',
			prefix TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		)
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteSource{db: db}, nil
}

func (s *SQLiteSource) Info() provider.Info {
	return provider.Info{
		Name:    "sqlite",
		Version: "1.0.0",
		Author:  "dhcp6d",
	}
}

// Put stores or replaces the assignment for id. The id is normalized the same
// way lookups are.
func (s *SQLiteSource) Put(ctx context.Context, id string, a Assignment) error {
	key, err := NormalizeKey(id)
	if err != nil {
		return err
	}
	if err := validateEntry(a); err != nil {
		return err
	}

	address, prefix := formatEntry(a)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assignments (id, address, prefix, updated_at)
		VALUES (?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(id) DO UPDATE SET
			address = excluded.address,
			prefix = excluded.prefix,
			updated_at = excluded.updated_at
	`, key, address, prefix)
	return err
}

func (s *SQLiteSource) Delete(ctx context.Context, id string) error {
	key, err := NormalizeKey(id)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM assignments WHERE id = ?`, key)
	return err
}

func (s *SQLiteSource) Assignment(ctx context.Context, b *transaction.Bundle) (Assignment, error) {
	return resolve(ctx, b, s.lookup)
}

func (s *SQLiteSource) lookup(ctx context.Context, key string) (Assignment, bool, error) {
	var address, prefix string
	err := s.db.QueryRowContext(ctx, `
		SELECT address, prefix FROM assignments WHERE id = ?
	`, key).Scan(&address, &prefix)
	if errors.Is(err, sql.ErrNoRows) {
		return Assignment{}, false, nil
	}
	if err != nil {
		return Assignment{}, false, err
	}

	a, err := parseEntry(address, prefix)
	if err != nil {
		return Assignment{}, false, fmt.Errorf("stored entry: %w", err)
	}
	return a, true, nil
}

func (s *SQLiteSource) Close() error {
	return s.db.Close()
}
