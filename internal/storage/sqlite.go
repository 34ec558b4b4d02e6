// Package storage persists the ledger state as three JSON documents
// under the keys "expenses", "categories" and "budget". Reads on keys
// that were never written return defaults: an empty expense list, the
// seed category list and a budget of 1000.00. The three keys are written
// independently; there is no atomicity across them.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"tally/internal/core"

	_ "modernc.org/sqlite"
)

// Document keys.
const (
	keyExpenses   = "expenses"
	keyCategories = "categories"
	keyBudget     = "budget"
)

// SQLiteStore is the durable backend. Documents live in a single table
// managed by embedded migrations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the database at dbPath
// and brings the schema up to date.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// get unmarshals the document under key into dst. Returns false when the
// key was never written.
func (s *SQLiteStore) get(ctx context.Context, key string, dst any) (bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM documents WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read document %q: %w", key, err)
	}
	if err := json.Unmarshal([]byte(value), dst); err != nil {
		return false, fmt.Errorf("decode document %q: %w", key, err)
	}
	return true, nil
}

// set replaces the document under key.
func (s *SQLiteStore) set(ctx context.Context, key string, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode document %q: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, string(value))
	if err != nil {
		return fmt.Errorf("write document %q: %w", key, err)
	}
	slog.DebugContext(ctx, "Document written", "key", key, "bytes", len(value))
	return nil
}

func (s *SQLiteStore) Expenses(ctx context.Context) ([]core.Expense, error) {
	var expenses []core.Expense
	if _, err := s.get(ctx, keyExpenses, &expenses); err != nil {
		return nil, err
	}
	return expenses, nil
}

func (s *SQLiteStore) SaveExpenses(ctx context.Context, expenses []core.Expense) error {
	if expenses == nil {
		expenses = []core.Expense{}
	}
	return s.set(ctx, keyExpenses, expenses)
}

func (s *SQLiteStore) Categories(ctx context.Context) ([]core.Category, error) {
	var categories []core.Category
	found, err := s.get(ctx, keyCategories, &categories)
	if err != nil {
		return nil, err
	}
	if !found {
		return SeedCategories(), nil
	}
	return categories, nil
}

func (s *SQLiteStore) SaveCategories(ctx context.Context, categories []core.Category) error {
	if categories == nil {
		categories = []core.Category{}
	}
	return s.set(ctx, keyCategories, categories)
}

func (s *SQLiteStore) Budget(ctx context.Context) (core.Money, error) {
	var budget core.Money
	found, err := s.get(ctx, keyBudget, &budget)
	if err != nil {
		return core.Money{}, err
	}
	if !found {
		return DefaultBudget(), nil
	}
	return budget, nil
}

func (s *SQLiteStore) SaveBudget(ctx context.Context, budget core.Money) error {
	return s.set(ctx, keyBudget, budget)
}
