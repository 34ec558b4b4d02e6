// Package ledger owns the application state: the expense list, the
// category list and the base monthly budget. State is loaded once from
// the store at startup and mirrored back on every mutation. Aggregations
// are delegated to core and computed on demand against the snapshot.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"tally/internal/core"
)

var (
	ErrExpenseNotFound  = errors.New("expense not found")
	ErrCategoryNotFound = errors.New("category not found")
	// ErrCategoryInUse rejects deletion of a category still referenced by
	// at least one expense. The only cross-entity integrity rule enforced.
	ErrCategoryInUse = errors.New("category is in use")
)

// Store is the durable persistence port. Reads return defaults when a
// key has never been written (seed categories, default budget).
type Store interface {
	Expenses(ctx context.Context) ([]core.Expense, error)
	SaveExpenses(ctx context.Context, expenses []core.Expense) error
	Categories(ctx context.Context) ([]core.Category, error)
	SaveCategories(ctx context.Context, categories []core.Category) error
	Budget(ctx context.Context) (core.Money, error)
	SaveBudget(ctx context.Context, budget core.Money) error
}

// Publisher receives best-effort mutation events. Implementations must
// tolerate being called on the request path: failures are logged by the
// ledger and never fail the mutation.
type Publisher interface {
	PublishMutation(ctx context.Context, kind, entityID string) error
}

// Mutation event kinds.
const (
	EventExpenseCreated  = "expense.created"
	EventExpenseUpdated  = "expense.updated"
	EventExpenseDeleted  = "expense.deleted"
	EventCategoryCreated = "category.created"
	EventCategoryDeleted = "category.deleted"
	EventBudgetChanged   = "budget.changed"
)

// Ledger serializes all mutations behind one mutex. The domain itself is
// single-threaded; the lock only shields the snapshot from the
// concurrent HTTP host.
type Ledger struct {
	mu    sync.Mutex
	store Store
	pub   Publisher

	expenses   []core.Expense
	categories []core.Category
	budget     core.Money

	now    func() time.Time
	lastID int64
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithPublisher attaches a mutation event publisher.
func WithPublisher(pub Publisher) Option {
	return func(l *Ledger) { l.pub = pub }
}

// WithClock overrides the clock used for ID generation. Tests use this
// to make IDs predictable.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// Open loads the full snapshot from the store.
func Open(ctx context.Context, store Store, opts ...Option) (*Ledger, error) {
	l := &Ledger{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}

	var err error
	if l.expenses, err = store.Expenses(ctx); err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}
	if l.categories, err = store.Categories(ctx); err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	if l.budget, err = store.Budget(ctx); err != nil {
		return nil, fmt.Errorf("load budget: %w", err)
	}

	// Seed the ID generator past every numeric ID already present so
	// collection-wide uniqueness survives restarts.
	for _, e := range l.expenses {
		l.bumpLastID(e.ID)
	}
	for _, c := range l.categories {
		l.bumpLastID(c.ID)
	}

	slog.InfoContext(ctx, "Ledger loaded",
		"expenses", len(l.expenses),
		"categories", len(l.categories),
		"budget_cents", l.budget.Cents)

	return l, nil
}

func (l *Ledger) bumpLastID(id string) {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil && n > l.lastID {
		l.lastID = n
	}
}

// nextID issues a millisecond-timestamp ID, bumped past the last issued
// one so two mutations in the same millisecond never collide.
func (l *Ledger) nextID() string {
	id := l.now().UnixMilli()
	if id <= l.lastID {
		id = l.lastID + 1
	}
	l.lastID = id
	return strconv.FormatInt(id, 10)
}

// AddExpense validates and prepends a new expense (newest-first storage
// order), persists the list and publishes an event. The assigned ID is
// returned on the expense.
func (l *Ledger) AddExpense(ctx context.Context, name string, amount core.Money, date core.Date, categoryID string) (core.Expense, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := core.Expense{
		Name:       name,
		Amount:     amount,
		Date:       date,
		CategoryID: categoryID,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	e.ID = l.nextID()

	next := make([]core.Expense, 0, len(l.expenses)+1)
	next = append(next, e)
	next = append(next, l.expenses...)
	if err := l.store.SaveExpenses(ctx, next); err != nil {
		return core.Expense{}, fmt.Errorf("persist expenses: %w", err)
	}
	l.expenses = next

	l.publish(ctx, EventExpenseCreated, e.ID)
	return e, nil
}

// UpdateExpense replaces the expense with the same ID in place. The ID
// itself is immutable.
func (l *Ledger) UpdateExpense(ctx context.Context, e core.Expense) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := e.Validate(); err != nil {
		return err
	}

	i := l.expenseIndex(e.ID)
	if i < 0 {
		return fmt.Errorf("update expense %s: %w", e.ID, ErrExpenseNotFound)
	}

	next := make([]core.Expense, len(l.expenses))
	copy(next, l.expenses)
	next[i] = e
	if err := l.store.SaveExpenses(ctx, next); err != nil {
		return fmt.Errorf("persist expenses: %w", err)
	}
	l.expenses = next

	l.publish(ctx, EventExpenseUpdated, e.ID)
	return nil
}

// DeleteExpense removes the expense with the given ID.
func (l *Ledger) DeleteExpense(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.expenseIndex(id)
	if i < 0 {
		return fmt.Errorf("delete expense %s: %w", id, ErrExpenseNotFound)
	}

	next := make([]core.Expense, 0, len(l.expenses)-1)
	next = append(next, l.expenses[:i]...)
	next = append(next, l.expenses[i+1:]...)
	if err := l.store.SaveExpenses(ctx, next); err != nil {
		return fmt.Errorf("persist expenses: %w", err)
	}
	l.expenses = next

	l.publish(ctx, EventExpenseDeleted, id)
	return nil
}

// AddCategory validates and appends a new category.
func (l *Ledger) AddCategory(ctx context.Context, name, emoji string) (core.Category, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := core.Category{Name: name, Emoji: emoji}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	c.ID = l.nextID()

	next := make([]core.Category, 0, len(l.categories)+1)
	next = append(next, l.categories...)
	next = append(next, c)
	if err := l.store.SaveCategories(ctx, next); err != nil {
		return core.Category{}, fmt.Errorf("persist categories: %w", err)
	}
	l.categories = next

	l.publish(ctx, EventCategoryCreated, c.ID)
	return c, nil
}

// DeleteCategory removes a category, refusing when any expense still
// references it. State is unchanged on rejection.
func (l *Ledger) DeleteCategory(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := -1
	for j, c := range l.categories {
		if c.ID == id {
			i = j
			break
		}
	}
	if i < 0 {
		return fmt.Errorf("delete category %s: %w", id, ErrCategoryNotFound)
	}
	if !core.CanDeleteCategory(id, l.expenses) {
		return fmt.Errorf("delete category %q: %w", l.categories[i].Name, ErrCategoryInUse)
	}

	next := make([]core.Category, 0, len(l.categories)-1)
	next = append(next, l.categories[:i]...)
	next = append(next, l.categories[i+1:]...)
	if err := l.store.SaveCategories(ctx, next); err != nil {
		return fmt.Errorf("persist categories: %w", err)
	}
	l.categories = next

	l.publish(ctx, EventCategoryDeleted, id)
	return nil
}

// SetBudget replaces the base monthly allocation. Zero is allowed
// (budgeting switched off); negative budgets are not.
func (l *Ledger) SetBudget(ctx context.Context, amount core.Money) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount.Cents < 0 {
		return core.ErrInvalidAmount
	}
	if err := l.store.SaveBudget(ctx, amount); err != nil {
		return fmt.Errorf("persist budget: %w", err)
	}
	l.budget = amount

	l.publish(ctx, EventBudgetChanged, "")
	return nil
}

// Expenses returns a copy of the expense list in storage order
// (newest first).
func (l *Ledger) Expenses() []core.Expense {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]core.Expense, len(l.expenses))
	copy(out, l.expenses)
	return out
}

// Categories returns a copy of the category list.
func (l *Ledger) Categories() []core.Category {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]core.Category, len(l.categories))
	copy(out, l.categories)
	return out
}

// Budget returns the base monthly allocation.
func (l *Ledger) Budget() core.Money {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.budget
}

// Summary computes the budget summary for the month of ref.
func (l *Ledger) Summary(ref core.Date) core.BudgetSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return core.ComputeBudgetSummary(l.expenses, l.budget, ref)
}

// CategoryTotals computes the per-category breakdown for the month of ref.
func (l *Ledger) CategoryTotals(ref core.Date) []core.CategoryTotal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return core.ComputeCategoryTotals(l.expenses, l.categories, ref)
}

// GroupedExpenses returns the full expense list grouped by date,
// newest date first.
func (l *Ledger) GroupedExpenses() []core.DateGroup {
	l.mu.Lock()
	defer l.mu.Unlock()
	return core.GroupByDate(l.expenses)
}

func (l *Ledger) publish(ctx context.Context, kind, entityID string) {
	if l.pub == nil {
		return
	}
	if err := l.pub.PublishMutation(ctx, kind, entityID); err != nil {
		// Events are best-effort: the mutation already committed.
		slog.WarnContext(ctx, "Failed to publish mutation event",
			"kind", kind, "entity_id", entityID, "error", err)
	}
}

func (l *Ledger) expenseIndex(id string) int {
	for i, e := range l.expenses {
		if e.ID == id {
			return i
		}
	}
	return -1
}
