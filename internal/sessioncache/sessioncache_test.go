package sessioncache_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"tasksync/internal/sessioncache"
)

func newCache(t *testing.T) (*sessioncache.Cache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.db")
	c := sessioncache.New(path)
	t.Cleanup(func() { c.Close() })
	return c, path
}

func TestInitialize_Idempotent(t *testing.T) {
	c, path := newCache(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := c.Initialize(ctx); err != nil {
			t.Fatalf("Initialize #%d: %v", i, err)
		}
	}
	c.Close()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM session`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected exactly one row, got %d", n)
	}
}

func TestSaveLoadClear(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()
	if err := c.Initialize(ctx); err != nil {
		t.Fatal(err)
	}

	uid, err := c.LoadActiveUser(ctx)
	if err != nil || uid != "" {
		t.Fatalf("expected empty user on first launch, got %q, %v", uid, err)
	}

	if err := c.SaveActiveUser(ctx, "alice"); err != nil {
		t.Fatalf("SaveActiveUser: %v", err)
	}
	if err := c.SaveActiveUser(ctx, "bob"); err != nil {
		t.Fatalf("SaveActiveUser: %v", err)
	}
	if uid, _ := c.LoadActiveUser(ctx); uid != "bob" {
		t.Errorf("expected bob, got %q", uid)
	}

	if err := c.ClearActiveUser(ctx); err != nil {
		t.Fatalf("ClearActiveUser: %v", err)
	}
	if uid, _ := c.LoadActiveUser(ctx); uid != "" {
		t.Errorf("expected cleared user, got %q", uid)
	}
}

func TestPersistsAcrossOpen(t *testing.T) {
	c, path := newCache(t)
	ctx := context.Background()
	if err := c.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.SaveActiveUser(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	c.Close()

	again := sessioncache.New(path)
	defer again.Close()
	if err := again.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	if uid, err := again.LoadActiveUser(ctx); err != nil || uid != "alice" {
		t.Errorf("expected alice after reopen, got %q, %v", uid, err)
	}
}

func TestUnavailable(t *testing.T) {
	c := sessioncache.New(filepath.Join(t.TempDir(), "missing", "dir", "session.db"))
	defer c.Close()

	if err := c.Initialize(context.Background()); !errors.Is(err, sessioncache.ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestReadWithoutInitialize(t *testing.T) {
	c, _ := newCache(t)
	if _, err := c.LoadActiveUser(context.Background()); !errors.Is(err, sessioncache.ErrStorageRead) {
		t.Errorf("expected ErrStorageRead before the table exists, got %v", err)
	}
}
