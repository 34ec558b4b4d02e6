package core

import "sort"

// BudgetSummary describes one calendar month of spending against the
// effective budget (base allocation plus rollover from the prior month).
type BudgetSummary struct {
	SpentThisMonth Money `json:"spent_this_month_cents"`
	Rollover       Money `json:"rollover_cents"`
	TotalBudget    Money `json:"total_budget_cents"`
	Remaining      Money `json:"remaining_cents"`
}

// CategoryTotal is an amount aggregated under a resolved category label.
type CategoryTotal struct {
	Label string `json:"label"`
	Total Money  `json:"total_cents"`
}

// DateGroup is the expenses of a single calendar date, newest-first
// within the group as stored.
type DateGroup struct {
	Date     string    `json:"date"`
	Expenses []Expense `json:"expenses"`
}

// ComputeBudgetSummary computes the summary for the calendar month
// containing ref. Unspent allocation from the prior month carries
// forward; overspending there is floored at zero, never propagated as a
// penalty. Remaining may go negative, which is a displayable overspend
// state rather than an error.
//
// The function is pure: identical inputs (including ref) always yield
// identical output.
func ComputeBudgetSummary(expenses []Expense, baseBudget Money, ref Date) BudgetSummary {
	prevYear, prevMonth := ref.PreviousMonth()

	var spentThis, spentLast int64
	for _, e := range expenses {
		switch {
		case e.Date.SameMonth(ref):
			spentThis += e.Amount.Cents
		case e.Date.InMonth(prevYear, prevMonth):
			spentLast += e.Amount.Cents
		}
	}

	rollover := baseBudget.Cents - spentLast
	if rollover < 0 {
		rollover = 0
	}
	total := baseBudget.Cents + rollover

	return BudgetSummary{
		SpentThisMonth: Money{Cents: spentThis},
		Rollover:       Money{Cents: rollover},
		TotalBudget:    Money{Cents: total},
		Remaining:      Money{Cents: total - spentThis},
	}
}

// ComputeCategoryTotals aggregates the month of ref per resolved category
// label. Expenses whose category reference does not resolve fall under
// the Uncategorized label. Labels appear in first-seen order; callers
// needing a stable visual order must sort explicitly. An empty month
// yields an empty slice.
func ComputeCategoryTotals(expenses []Expense, categories []Category, ref Date) []CategoryTotal {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	index := make(map[string]int)
	var totals []CategoryTotal
	for _, e := range expenses {
		if !e.Date.SameMonth(ref) {
			continue
		}
		label, ok := names[e.CategoryID]
		if !ok {
			label = UncategorizedLabel
		}
		i, seen := index[label]
		if !seen {
			i = len(totals)
			index[label] = i
			totals = append(totals, CategoryTotal{Label: label})
		}
		totals[i].Total.Cents += e.Amount.Cents
	}
	return totals
}

// CanDeleteCategory reports whether the category is safe to delete,
// i.e. no expense references it.
func CanDeleteCategory(categoryID string, expenses []Expense) bool {
	for _, e := range expenses {
		if e.CategoryID == categoryID {
			return false
		}
	}
	return true
}

// GroupByDate groups expenses by calendar date for display. Groups are
// sorted descending by date; within a group the stored order (newest
// first) is preserved.
func GroupByDate(expenses []Expense) []DateGroup {
	index := make(map[string]int)
	var groups []DateGroup
	for _, e := range expenses {
		key := e.Date.String()
		i, seen := index[key]
		if !seen {
			i = len(groups)
			index[key] = i
			groups = append(groups, DateGroup{Date: key})
		}
		groups[i].Expenses = append(groups[i].Expenses, e)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Date > groups[j].Date })
	return groups
}
