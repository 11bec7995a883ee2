// Package storage provides the crawl backends.
// SQLiteBackend keeps the queue in an id-ordered table; RedisBackend keeps
// it in a list. Both satisfy crawler.Backend.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/masahif/gemcrawl/internal/crawler"
	"github.com/masahif/gemcrawl/internal/weburl"
	// SQLite database driver (CGO-free)
	_ "modernc.org/sqlite"
)

var _ crawler.Backend = (*SQLiteBackend)(nil)

// SQLiteBackend implements crawler.Backend using SQLite
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens or creates the database at dbPath
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection prevents lock conflicts
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	backend := &SQLiteBackend{db: db}

	if err := backend.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return backend, nil
}

// InitSchema creates the database schema
func (s *SQLiteBackend) InitSchema() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 30000", // 30 second timeout for locks
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

// FetchBatch returns the oldest pending URLs without removing them
func (s *SQLiteBackend) FetchBatch(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, "SELECT url FROM urls ORDER BY id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch batch: %w", err)
	}
	defer func() { _ = rows.Close() }()

	urls := make([]string, 0, limit)
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan url: %w", err)
		}
		urls = append(urls, url)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch batch: %w", err)
	}
	return urls, nil
}

// DropBatch removes the oldest pending URLs
func (s *SQLiteBackend) DropBatch(ctx context.Context, limit int) error {
	if limit <= 0 {
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM urls WHERE id IN (SELECT id FROM urls ORDER BY id LIMIT ?)", limit)
	if err != nil {
		return fmt.Errorf("failed to drop batch: %w", err)
	}
	return nil
}

// PendingCount returns the number of queued URLs
func (s *SQLiteBackend) PendingCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM urls").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending urls: %w", err)
	}
	return n, nil
}

// Enqueue appends URLs to the queue in a single transaction
func (s *SQLiteBackend) Enqueue(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO urls (url, added_at) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now()
	for _, url := range urls {
		if _, err := stmt.ExecContext(ctx, url, now); err != nil {
			return fmt.Errorf("failed to insert URL %s: %w", url, err)
		}
	}

	return tx.Commit()
}

// IncrementVisit adds one to the counter for key, creating it at 1
func (s *SQLiteBackend) IncrementVisit(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO counts (name, count) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET count = count + 1
	`, key)
	if err != nil {
		return fmt.Errorf("failed to increment visit count for %s: %w", key, err)
	}
	return nil
}

// VisitCount returns the counter for key, 0 if absent
func (s *SQLiteBackend) VisitCount(ctx context.Context, key string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT count FROM counts WHERE name = ?", key).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get visit count for %s: %w", key, err)
	}
	return n, nil
}

// RecordGem stores payload as JSON
func (s *SQLiteBackend) RecordGem(ctx context.Context, u weburl.URL, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode gem for %s: %w", u, err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO gems (url, payload, found_at) VALUES (?, ?, ?)",
		u.String(), string(data), time.Now())
	if err != nil {
		return fmt.Errorf("failed to save gem for %s: %w", u, err)
	}
	return nil
}

// Gems returns the recorded payloads in insertion order
func (s *SQLiteBackend) Gems(ctx context.Context) ([]Gem, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT url, payload FROM gems ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list gems: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var gems []Gem
	for rows.Next() {
		var g Gem
		var payload string
		if err := rows.Scan(&g.URL, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan gem: %w", err)
		}
		g.Payload = json.RawMessage(payload)
		gems = append(gems, g)
	}
	return gems, rows.Err()
}

// Products returns the ld+json Product gems through the gem_products view
func (s *SQLiteBackend) Products(ctx context.Context) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url, COALESCE(name, ''), COALESCE(brand, ''), COALESCE(gtin13, ''),
		       COALESCE(CAST(price AS TEXT), ''), COALESCE(currency, ''), COALESCE(availability, '')
		FROM gem_products ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.URL, &p.Name, &p.Brand, &p.GTIN13, &p.Price, &p.Currency, &p.Availability); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// GetMeta retrieves a metadata value
func (s *SQLiteBackend) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM crawl_meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta: %w", err)
	}
	return value, nil
}

// SetMeta stores a metadata value
func (s *SQLiteBackend) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO crawl_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set meta: %w", err)
	}
	return nil
}
