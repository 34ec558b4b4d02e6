// Package scan extracts a structured expense draft from a receipt photo
// via the Gemini API. The service is treated as opaque: one request, one
// JSON object back, any failure degrades to manual entry upstream.
package scan

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"tally/internal/core"
)

// FallbackCategoryName is used when the scanned category name matches no
// existing category.
const FallbackCategoryName = "Other"

// ErrNoDraft wraps every scan failure the caller should surface as a
// "scan it yourself" notice rather than a fault.
var ErrNoDraft = errors.New("no draft extracted")

// Draft is the wire contract with the scan service: the amount is a
// plain decimal number and the date its canonical YYYY-MM-DD form.
type Draft struct {
	Name         string  `json:"name"`
	Amount       float64 `json:"amount"`
	Date         string  `json:"date"`
	CategoryName string  `json:"categoryName"`
}

// AmountCents converts the draft amount to cents with half-up rounding.
func (d Draft) AmountCents() int64 {
	return core.CentsFromFloat(d.Amount)
}

// ParseDraft decodes the model's JSON reply. Code-fence wrappers are
// tolerated; anything that does not yield the four required fields is a
// failed scan.
func ParseDraft(raw string) (*Draft, error) {
	cleaned := stripCodeFence(raw)

	var d Draft
	if err := json.Unmarshal([]byte(cleaned), &d); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrNoDraft, err)
	}
	if strings.TrimSpace(d.Name) == "" {
		return nil, fmt.Errorf("%w: missing name", ErrNoDraft)
	}
	if d.Amount <= 0 {
		return nil, fmt.Errorf("%w: missing amount", ErrNoDraft)
	}
	// Models occasionally return a full timestamp; keep the date part.
	if i := strings.IndexByte(d.Date, 'T'); i >= 0 {
		d.Date = d.Date[:i]
	}
	if _, err := core.ParseDate(d.Date); err != nil {
		return nil, fmt.Errorf("%w: bad date %q", ErrNoDraft, d.Date)
	}
	return &d, nil
}

// stripCodeFence removes a ```json ... ``` (or bare ```) wrapper when
// the model ignores the JSON response mode.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// MatchCategory resolves a scanned category name against the existing
// categories, case-insensitively. No match falls back to the category
// literally named "Other"; absent that too, no category is returned.
func MatchCategory(categories []core.Category, name string) (core.Category, bool) {
	for _, c := range categories {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	for _, c := range categories {
		if c.Name == FallbackCategoryName {
			return c, true
		}
	}
	return core.Category{}, false
}
