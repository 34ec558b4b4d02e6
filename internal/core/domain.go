package core

import (
	"errors"
	"fmt"
	"strings"
)

// UncategorizedLabel is the display fallback used when an expense's
// category reference does not resolve to an existing category.
const UncategorizedLabel = "Uncategorized"

type (
	// Expense is a single logged expense. IDs are assigned by the ledger
	// at creation time and never change afterwards.
	Expense struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Amount     Money  `json:"amount_cents"`
		Date       Date   `json:"date"`
		CategoryID string `json:"category_id"`
	}

	// Category is a user-defined spending category.
	Category struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Emoji string `json:"emoji"`
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrEmptyName     = errors.New("empty name")
	ErrEmptyEmoji    = errors.New("empty emoji")
	ErrNameTooLong   = errors.New("name too long")
)

func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Name)) == 0 {
		return ErrEmptyName
	}
	if len(e.Name) > 200 {
		return fmt.Errorf("%w (max 200 characters)", ErrNameTooLong)
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	// CategoryID is intentionally not checked against the category list:
	// dangling references degrade to the Uncategorized label on display.
	return nil
}

func (c Category) Validate() error {
	if len(strings.TrimSpace(c.Name)) == 0 {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return fmt.Errorf("%w (max 100 characters)", ErrNameTooLong)
	}
	if len(strings.TrimSpace(c.Emoji)) == 0 {
		return ErrEmptyEmoji
	}
	return nil
}
