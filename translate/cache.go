package translate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Cache stores finished translations between runs.
type Cache interface {
	Get(ctx context.Context, source, target, text string) (string, bool, error)
	Put(ctx context.Context, source, target, text, translated string) error
}

// SQLiteCache keeps translations in a SQLite database.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache opens (or creates) the cache database at dbPath.
func NewSQLiteCache(dbPath string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	cache := &SQLiteCache{db: db}
	if err := cache.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return cache, nil
}

// initSchema creates the translations table if it doesn't exist.
func (c *SQLiteCache) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS translations (
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		text TEXT NOT NULL,
		translated TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (source_lang, target_lang, text)
	);
	`

	_, err := c.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

// Get returns the cached translation, if any.
func (c *SQLiteCache) Get(ctx context.Context, source, target, text string) (string, bool, error) {
	query := "SELECT translated FROM translations WHERE source_lang = ? AND target_lang = ? AND text = ?"

	var translated string
	err := c.db.QueryRowContext(ctx, query, source, target, text).Scan(&translated)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query translation: %w", err)
	}

	return translated, true, nil
}

// Put stores a translation, replacing any previous one.
func (c *SQLiteCache) Put(ctx context.Context, source, target, text, translated string) error {
	query := `INSERT OR REPLACE INTO translations (source_lang, target_lang, text, translated, created_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err := c.db.ExecContext(ctx, query, source, target, text, translated, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to store translation: %w", err)
	}
	return nil
}

// ErrCacheClosed is returned by a lazy cache closed before first use.
var ErrCacheClosed = errors.New("translation cache closed")

// LazySQLiteCache opens its database on first use, so a run that never
// translates leaves no file behind. An open failure is returned by every
// later call.
type LazySQLiteCache struct {
	path  string
	once  sync.Once
	cache *SQLiteCache
	err   error
}

// NewLazySQLiteCache returns a cache for dbPath without touching the disk.
func NewLazySQLiteCache(dbPath string) *LazySQLiteCache {
	return &LazySQLiteCache{path: dbPath}
}

func (c *LazySQLiteCache) open() (*SQLiteCache, error) {
	c.once.Do(func() {
		c.cache, c.err = NewSQLiteCache(c.path)
	})
	return c.cache, c.err
}

// Get opens the database if needed and looks up a translation.
func (c *LazySQLiteCache) Get(ctx context.Context, source, target, text string) (string, bool, error) {
	cache, err := c.open()
	if err != nil {
		return "", false, err
	}
	return cache.Get(ctx, source, target, text)
}

// Put opens the database if needed and stores a translation.
func (c *LazySQLiteCache) Put(ctx context.Context, source, target, text, translated string) error {
	cache, err := c.open()
	if err != nil {
		return err
	}
	return cache.Put(ctx, source, target, text, translated)
}

// Close closes the database if it was opened.
func (c *LazySQLiteCache) Close() error {
	c.once.Do(func() { c.err = ErrCacheClosed })
	if c.cache == nil {
		return nil
	}
	return c.cache.Close()
}
