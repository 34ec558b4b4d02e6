package scan

import (
	"errors"
	"testing"

	"tally/internal/core"
)

func TestParseDraft(t *testing.T) {
	raw := `{"name":"Groceries at Corner Shop","amount":45.21,"date":"2025-06-09","categoryName":"Groceries"}`
	d, err := ParseDraft(raw)
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.Name != "Groceries at Corner Shop" || d.CategoryName != "Groceries" {
		t.Fatalf("draft fields wrong: %+v", d)
	}
	if d.AmountCents() != 4521 {
		t.Fatalf("amount cents = %d, want 4521", d.AmountCents())
	}
}

func TestParseDraftCodeFence(t *testing.T) {
	raw := "```json\n{\"name\":\"Dinner\",\"amount\":30,\"date\":\"2025-06-09\",\"categoryName\":\"Dining Out\"}\n```"
	d, err := ParseDraft(raw)
	if err != nil {
		t.Fatalf("expected fenced JSON to parse, got %v", err)
	}
	if d.Name != "Dinner" {
		t.Fatalf("draft = %+v", d)
	}
}

func TestParseDraftTimestampDate(t *testing.T) {
	raw := `{"name":"Dinner","amount":30,"date":"2025-06-09T19:30:00Z","categoryName":"Dining Out"}`
	d, err := ParseDraft(raw)
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.Date != "2025-06-09" {
		t.Fatalf("timestamp not trimmed to date: %q", d.Date)
	}
}

func TestParseDraftFailures(t *testing.T) {
	cases := []string{
		``,
		`not json`,
		`{"amount":30,"date":"2025-06-09","categoryName":"x"}`,            // no name
		`{"name":"a","amount":0,"date":"2025-06-09","categoryName":"x"}`,  // zero amount
		`{"name":"a","amount":-5,"date":"2025-06-09","categoryName":"x"}`, // negative amount
		`{"name":"a","amount":30,"date":"09/06/2025","categoryName":"x"}`, // bad date
		`{"name":"a","amount":30,"date":"","categoryName":"x"}`,           // empty date
	}
	for i, raw := range cases {
		if _, err := ParseDraft(raw); !errors.Is(err, ErrNoDraft) {
			t.Fatalf("case %d expected ErrNoDraft, got %v", i, err)
		}
	}
}

func TestMatchCategory(t *testing.T) {
	categories := []core.Category{
		{ID: "1", Name: "Groceries", Emoji: "g"},
		{ID: "8", Name: "Other", Emoji: "o"},
	}

	c, ok := MatchCategory(categories, "groceries")
	if !ok || c.ID != "1" {
		t.Fatalf("case-insensitive match failed: %+v ok=%v", c, ok)
	}

	c, ok = MatchCategory(categories, "Spaceships")
	if !ok || c.Name != "Other" {
		t.Fatalf("expected Other fallback, got %+v ok=%v", c, ok)
	}

	_, ok = MatchCategory([]core.Category{{ID: "1", Name: "Groceries", Emoji: "g"}}, "Spaceships")
	if ok {
		t.Fatalf("no match and no Other must yield no category")
	}
}

func TestImageFormat(t *testing.T) {
	cases := map[string]string{
		"image/jpeg": "jpeg",
		"image/jpg":  "jpeg",
		"image/png":  "png",
		"IMAGE/PNG":  "png",
		"image/webp": "webp",
	}
	for in, want := range cases {
		if got := imageFormat(in); got != want {
			t.Fatalf("imageFormat(%q) = %q, want %q", in, got, want)
		}
	}
}
