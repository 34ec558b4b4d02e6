package storage

import (
	"context"
	"sync"

	"tally/internal/core"
)

// MemoryStore is the non-durable backend: same defaults and semantics as
// the SQLite store, state gone on process exit. It is the default
// backend and the test double for everything above the store port.
type MemoryStore struct {
	mu         sync.Mutex
	expenses   []core.Expense
	categories []core.Category
	budget     core.Money

	hasExpenses   bool
	hasCategories bool
	hasBudget     bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Expenses(ctx context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasExpenses {
		return nil, nil
	}
	out := make([]core.Expense, len(s.expenses))
	copy(out, s.expenses)
	return out, nil
}

func (s *MemoryStore) SaveExpenses(ctx context.Context, expenses []core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = make([]core.Expense, len(expenses))
	copy(s.expenses, expenses)
	s.hasExpenses = true
	return nil
}

func (s *MemoryStore) Categories(ctx context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasCategories {
		return SeedCategories(), nil
	}
	out := make([]core.Category, len(s.categories))
	copy(out, s.categories)
	return out, nil
}

func (s *MemoryStore) SaveCategories(ctx context.Context, categories []core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = make([]core.Category, len(categories))
	copy(s.categories, categories)
	s.hasCategories = true
	return nil
}

func (s *MemoryStore) Budget(ctx context.Context) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasBudget {
		return DefaultBudget(), nil
	}
	return s.budget, nil
}

func (s *MemoryStore) SaveBudget(ctx context.Context, budget core.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budget = budget
	s.hasBudget = true
	return nil
}
