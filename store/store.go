// Package store provides the SQLite-backed publish record store for rss-toot.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/robertmeta/rss-toot/model"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const entriesTable = "entries"

// Store manages the SQLite database of published entries.
type Store struct {
	db *sqlx.DB
}

// New opens the database at dbPath and applies pending migrations.
// The table layout is compatible with databases written by earlier
// versions of the bot.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single writer, and ":memory:" databases are per connection.
	db.SetMaxOpenConns(1)

	if err := migrateDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

func migrateDB(db *sqlx.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("error creating migrations source: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("error creating sqlite instance for migration: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("error creating migrator: %w", err)
	}
	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("error migrating: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// HasRecord reports whether the entry was already published to instance.
func (s *Store) HasRecord(ctx context.Context, entryID, instance string) (bool, error) {
	query, args, err := sq.Select("1").
		From(entriesTable).
		Where(sq.Eq{"feed_entry_id": entryID, "mastodon_instance": instance}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build query: %w", err)
	}

	var found int
	err = s.db.GetContext(ctx, &found, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up entry: %w", err)
	}
	return true, nil
}

// Record stores a publish record. Each call commits on its own, so every
// published entry is durable before the next one is processed.
func (s *Store) Record(ctx context.Context, r model.Record) error {
	if r.EntryID == "" || r.PostID == "" {
		return errors.New("record requires an entry id and a post id")
	}

	query, args, err := sq.Insert(entriesTable).
		Columns("feed_entry_id", "toot_id", "rss_feed_url", "mastodon_instance").
		Values(r.EntryID, r.PostID, r.FeedURL, r.Instance).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// List returns stored records, most recent first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]model.Record, error) {
	query, args, err := opts.selectQuery().ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var records []model.Record
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	return records, nil
}
