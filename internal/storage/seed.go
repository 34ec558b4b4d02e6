package storage

import "tally/internal/core"

// SeedCategories returns the category list served before the user ever
// saves one. "Other" doubles as the scan fallback category.
func SeedCategories() []core.Category {
	return []core.Category{
		{ID: "1", Name: "Groceries", Emoji: "🛒"},
		{ID: "2", Name: "Transport", Emoji: "🚗"},
		{ID: "3", Name: "Dining Out", Emoji: "🍔"},
		{ID: "4", Name: "Shopping", Emoji: "🛍️"},
		{ID: "5", Name: "Utilities", Emoji: "💡"},
		{ID: "6", Name: "Entertainment", Emoji: "🎬"},
		{ID: "7", Name: "Health", Emoji: "❤️‍🩹"},
		{ID: "8", Name: "Other", Emoji: "📦"},
	}
}

// DefaultBudget is the base monthly allocation before the user sets one.
func DefaultBudget() core.Money {
	return core.Money{Cents: 100000}
}
