package storage

import (
	"context"
	"path/filepath"
	"testing"

	"tally/internal/core"
)

func TestMemoryStoreDefaults(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	expenses, err := s.Expenses(ctx)
	if err != nil || len(expenses) != 0 {
		t.Fatalf("expected empty expenses, got %v (err=%v)", expenses, err)
	}

	categories, err := s.Categories(ctx)
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(categories) != 8 {
		t.Fatalf("expected 8 seed categories, got %d", len(categories))
	}
	if categories[7].Name != "Other" {
		t.Fatalf("seed list must contain Other last, got %q", categories[7].Name)
	}

	budget, err := s.Budget(ctx)
	if err != nil || budget.Cents != 100000 {
		t.Fatalf("expected default budget 100000 cents, got %d (err=%v)", budget.Cents, err)
	}
}

func TestMemoryStoreWritesStick(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.SaveCategories(ctx, []core.Category{{ID: "1", Name: "Only", Emoji: "o"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	categories, err := s.Categories(ctx)
	if err != nil || len(categories) != 1 || categories[0].Name != "Only" {
		t.Fatalf("expected saved list back, got %v (err=%v)", categories, err)
	}

	// An explicitly saved empty list must not revert to the seed.
	if err := s.SaveCategories(ctx, nil); err != nil {
		t.Fatalf("save empty: %v", err)
	}
	categories, err = s.Categories(ctx)
	if err != nil || len(categories) != 0 {
		t.Fatalf("expected empty list back, got %v (err=%v)", categories, err)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tally.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	// Defaults before any write.
	categories, err := s.Categories(ctx)
	if err != nil || len(categories) != 8 {
		t.Fatalf("expected seed categories, got %d (err=%v)", len(categories), err)
	}
	budget, err := s.Budget(ctx)
	if err != nil || budget.Cents != 100000 {
		t.Fatalf("expected default budget, got %d (err=%v)", budget.Cents, err)
	}

	date, _ := core.ParseDate("2025-06-09")
	expenses := []core.Expense{
		{ID: "2", Name: "Lunch", Amount: core.Money{Cents: 1250}, Date: date, CategoryID: "3"},
		{ID: "1", Name: "Coffee", Amount: core.Money{Cents: 350}, Date: date, CategoryID: "3"},
	}
	if err := s.SaveExpenses(ctx, expenses); err != nil {
		t.Fatalf("save expenses: %v", err)
	}
	if err := s.SaveBudget(ctx, core.Money{Cents: 222200}); err != nil {
		t.Fatalf("save budget: %v", err)
	}

	// Re-open to prove durability.
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	s, err = NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer s.Close()

	got, err := s.Expenses(ctx)
	if err != nil {
		t.Fatalf("load expenses: %v", err)
	}
	if len(got) != 2 || got[0].ID != "2" || got[1].Name != "Coffee" || got[1].Amount.Cents != 350 {
		t.Fatalf("expenses did not survive reopen: %+v", got)
	}
	if got[0].Date.String() != "2025-06-09" {
		t.Fatalf("date did not survive reopen: %s", got[0].Date)
	}
	budget, err = s.Budget(ctx)
	if err != nil || budget.Cents != 222200 {
		t.Fatalf("budget did not survive reopen: %d (err=%v)", budget.Cents, err)
	}
}

func TestSQLiteStoreSaveOverwrites(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tally.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	date, _ := core.ParseDate("2025-06-09")
	one := []core.Expense{{ID: "1", Name: "a", Amount: core.Money{Cents: 1}, Date: date, CategoryID: "1"}}
	if err := s.SaveExpenses(ctx, one); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveExpenses(ctx, nil); err != nil {
		t.Fatalf("save empty: %v", err)
	}
	got, err := s.Expenses(ctx)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty after overwrite, got %+v (err=%v)", got, err)
	}
}
