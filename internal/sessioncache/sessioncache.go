// Package sessioncache persists the id of the last signed-in user in a
// one-row sqlite table, so a restart can tell "never signed in" from "was
// signed in" before the auth provider has resolved its own session.
package sessioncache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrStorageUnavailable is returned when the database cannot be opened.
	ErrStorageUnavailable = errors.New("session storage unavailable")

	// ErrStorageRead is returned when the session row cannot be read.
	ErrStorageRead = errors.New("session storage read failed")

	// ErrStorageWrite is returned when the session row cannot be written.
	ErrStorageWrite = errors.New("session storage write failed")
)

const (
	createTable = `CREATE TABLE IF NOT EXISTS session (
	id INTEGER PRIMARY KEY NOT NULL,
	userId TEXT
)`
	insertRow = `INSERT OR IGNORE INTO session (id, userId) VALUES (1, NULL)`
)

// Cache is the session record. Access to the row is serialized.
type Cache struct {
	path string

	mu sync.Mutex
	db *sql.DB
}

// New returns a cache stored at path. The database is opened on first use.
func New(path string) *Cache {
	return &Cache{path: path}
}

// Initialize ensures the session row exists, creating it with a null user.
// It is idempotent.
func (c *Cache) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	db, err := c.open(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if _, err := db.ExecContext(ctx, insertRow); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	return nil
}

// SaveActiveUser records uid as the active user.
func (c *Cache) SaveActiveUser(ctx context.Context, uid string) error {
	return c.write(ctx, sql.NullString{String: uid, Valid: true})
}

// ClearActiveUser resets the active user to null.
func (c *Cache) ClearActiveUser(ctx context.Context) error {
	return c.write(ctx, sql.NullString{})
}

// LoadActiveUser returns the active user id, or "" if none is recorded.
func (c *Cache) LoadActiveUser(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	db, err := c.open(ctx)
	if err != nil {
		return "", err
	}
	var uid sql.NullString
	err = db.QueryRowContext(ctx, `SELECT userId FROM session WHERE id = 1`).Scan(&uid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorageRead, err)
	}
	return uid.String, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func (c *Cache) write(ctx context.Context, uid sql.NullString) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	db, err := c.open(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `UPDATE session SET userId = ? WHERE id = 1`, uid); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	return nil
}

// open must be called with mu held.
func (c *Cache) open(ctx context.Context) (*sql.DB, error) {
	if c.db != nil {
		return c.db, nil
	}
	db, err := sql.Open("sqlite3", c.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	db.SetMaxOpenConns(1)
	c.db = db
	return db, nil
}
