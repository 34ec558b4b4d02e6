package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tally/internal/core"
	"tally/internal/ledger"
	"tally/internal/scan"
	"tally/internal/storage"
)

type fakeScanner struct {
	draft *scan.Draft
	err   error
}

func (f *fakeScanner) Scan(ctx context.Context, image []byte, mimeType string, categoryNames []string) (*scan.Draft, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.draft, nil
}

func newTestServer(t *testing.T, scanner Scanner) *Server {
	t.Helper()

	var ms int64 = 1700000000000
	clock := func() time.Time {
		ms++
		return time.UnixMilli(ms)
	}

	led, err := ledger.Open(context.Background(), storage.NewMemoryStore(), ledger.WithClock(clock))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}

	srv := NewServer(":0", led, scanner, time.Second, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doJSON(t, srv, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestExpenseCRUD(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodGet, "/api/expenses", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d, want 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("empty list body = %q, want []", got)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/expenses", map[string]any{
		"name":         "Groceries at Corner Shop",
		"amount_cents": 4521,
		"date":         "2025-06-09",
		"category_id":  "1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d, body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[core.Expense](t, rec)
	if created.ID == "" {
		t.Fatal("created expense has no ID")
	}
	if created.Amount.Cents != 4521 {
		t.Errorf("Amount = %d, want 4521", created.Amount.Cents)
	}

	rec = doJSON(t, srv, http.MethodPut, "/api/expenses/"+created.ID, map[string]any{
		"name":         "Groceries",
		"amount_cents": 5000,
		"date":         "2025-06-10",
		"category_id":  "1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d, body %s", rec.Code, rec.Body.String())
	}
	updated := decodeBody[core.Expense](t, rec)
	if updated.Amount.Cents != 5000 {
		t.Errorf("updated Amount = %d, want 5000", updated.Amount.Cents)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/expenses/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d, want 204", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/expenses", nil)
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("list after delete = %q, want []", got)
	}
}

func TestExpenseValidationErrors(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{
			name: "zero amount",
			body: map[string]any{"name": "x", "amount_cents": 0, "date": "2025-06-09"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "negative amount",
			body: map[string]any{"name": "x", "amount_cents": -100, "date": "2025-06-09"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "empty name",
			body: map[string]any{"name": "  ", "amount_cents": 100, "date": "2025-06-09"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "bad date",
			body: map[string]any{"name": "x", "amount_cents": 100, "date": "09/06/2025"},
			want: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodPost, "/api/expenses", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			resp := decodeBody[map[string]any](t, rec)
			if resp["error"] == "" {
				t.Error("error envelope missing error field")
			}
		})
	}
}

func TestExpenseNotFound(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodDelete, "/api/expenses/999", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete unknown = %d, want 404", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPut, "/api/expenses/999", map[string]any{
		"name": "x", "amount_cents": 100, "date": "2025-06-09",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("update unknown = %d, want 404", rec.Code)
	}
}

func TestMalformedJSONIsBadRequest(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/expenses", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCategoryEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodGet, "/api/categories", nil)
	cats := decodeBody[[]core.Category](t, rec)
	if len(cats) != 8 {
		t.Fatalf("seeded categories = %d, want 8", len(cats))
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/categories", map[string]any{
		"name": "Travel", "emoji": "✈️",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category = %d, body %s", rec.Code, rec.Body.String())
	}
	travel := decodeBody[core.Category](t, rec)

	rec = doJSON(t, srv, http.MethodPost, "/api/categories", map[string]any{
		"name": "Misc", "emoji": "",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("create without emoji = %d, want 422", rec.Code)
	}

	// Reference the new category, then deletion must conflict
	rec = doJSON(t, srv, http.MethodPost, "/api/expenses", map[string]any{
		"name": "Flight", "amount_cents": 12000, "date": "2025-06-09", "category_id": travel.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create expense = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/categories/"+travel.ID, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("delete in-use category = %d, want 409", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/categories/999", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete unknown category = %d, want 404", rec.Code)
	}

	// Unreferenced seed category deletes fine
	rec = doJSON(t, srv, http.MethodDelete, "/api/categories/2", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete unreferenced category = %d, want 204", rec.Code)
	}
}

func TestBudgetEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodGet, "/api/budget", nil)
	budget := decodeBody[map[string]int64](t, rec)
	if budget["budget_cents"] != 100000 {
		t.Errorf("default budget = %d, want 100000", budget["budget_cents"])
	}

	rec = doJSON(t, srv, http.MethodPut, "/api/budget", map[string]any{"budget_cents": 150000})
	if rec.Code != http.StatusOK {
		t.Fatalf("set budget = %d", rec.Code)
	}
	budget = decodeBody[map[string]int64](t, rec)
	if budget["budget_cents"] != 150000 {
		t.Errorf("budget after set = %d, want 150000", budget["budget_cents"])
	}

	rec = doJSON(t, srv, http.MethodPut, "/api/budget", map[string]any{"budget_cents": -1})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("negative budget = %d, want 422", rec.Code)
	}
}

func TestSummaryAndBreakdown(t *testing.T) {
	srv := newTestServer(t, nil)

	// Last month spend 300, this month 150 against a 1000 budget
	for _, e := range []map[string]any{
		{"name": "prev", "amount_cents": 30000, "date": "2025-05-10", "category_id": "1"},
		{"name": "cur a", "amount_cents": 10000, "date": "2025-06-05", "category_id": "1"},
		{"name": "cur b", "amount_cents": 5000, "date": "2025-06-06", "category_id": "3"},
	} {
		if rec := doJSON(t, srv, http.MethodPost, "/api/expenses", e); rec.Code != http.StatusCreated {
			t.Fatalf("seed expense = %d", rec.Code)
		}
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/summary?year=2025&month=6", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary = %d", rec.Code)
	}
	summary := decodeBody[core.BudgetSummary](t, rec)
	if summary.SpentThisMonth.Cents != 15000 {
		t.Errorf("SpentThisMonth = %d, want 15000", summary.SpentThisMonth.Cents)
	}
	if summary.Rollover.Cents != 70000 {
		t.Errorf("Rollover = %d, want 70000", summary.Rollover.Cents)
	}
	if summary.TotalBudget.Cents != 170000 {
		t.Errorf("TotalBudget = %d, want 170000", summary.TotalBudget.Cents)
	}
	if summary.Remaining.Cents != 155000 {
		t.Errorf("Remaining = %d, want 155000", summary.Remaining.Cents)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/breakdown?year=2025&month=6", nil)
	totals := decodeBody[[]core.CategoryTotal](t, rec)
	if len(totals) != 2 {
		t.Fatalf("breakdown rows = %d, want 2", len(totals))
	}
	var sum int64
	for _, row := range totals {
		sum += row.Total.Cents
	}
	if sum != summary.SpentThisMonth.Cents {
		t.Errorf("breakdown sum = %d, want %d", sum, summary.SpentThisMonth.Cents)
	}

	// Cached summary must be invalidated by a new mutation
	if rec := doJSON(t, srv, http.MethodPost, "/api/expenses", map[string]any{
		"name": "cur c", "amount_cents": 2500, "date": "2025-06-07", "category_id": "1",
	}); rec.Code != http.StatusCreated {
		t.Fatalf("seed expense = %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodGet, "/api/summary?year=2025&month=6", nil)
	summary = decodeBody[core.BudgetSummary](t, rec)
	if summary.SpentThisMonth.Cents != 17500 {
		t.Errorf("SpentThisMonth after mutation = %d, want 17500", summary.SpentThisMonth.Cents)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/summary?month=13", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("month=13 = %d, want 422", rec.Code)
	}
}

func TestGroupedExpenses(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, e := range []map[string]any{
		{"name": "a", "amount_cents": 100, "date": "2025-06-05"},
		{"name": "b", "amount_cents": 200, "date": "2025-06-09"},
		{"name": "c", "amount_cents": 300, "date": "2025-06-05"},
	} {
		if rec := doJSON(t, srv, http.MethodPost, "/api/expenses", e); rec.Code != http.StatusCreated {
			t.Fatalf("seed expense = %d", rec.Code)
		}
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/expenses/grouped", nil)
	groups := decodeBody[[]core.DateGroup](t, rec)
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if groups[0].Date != "2025-06-09" {
		t.Errorf("first group = %s, want 2025-06-09", groups[0].Date)
	}
	if len(groups[1].Expenses) != 2 {
		t.Errorf("second group size = %d, want 2", len(groups[1].Expenses))
	}
}

func scanRequest(t *testing.T, image []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "receipt.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(image); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/scan", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestScanEndpoint(t *testing.T) {
	scanner := &fakeScanner{draft: &scan.Draft{
		Name:         "Corner Shop",
		Amount:       45.21,
		Date:         "2025-06-09",
		CategoryName: "groceries",
	}}
	srv := newTestServer(t, scanner)

	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, scanRequest(t, []byte("fake jpeg bytes")))
	if rec.Code != http.StatusOK {
		t.Fatalf("scan = %d, body %s", rec.Code, rec.Body.String())
	}

	resp := decodeBody[map[string]any](t, rec)
	if resp["amount_cents"].(float64) != 4521 {
		t.Errorf("amount_cents = %v, want 4521", resp["amount_cents"])
	}
	// Case-insensitive match against the seeded Groceries category
	if resp["category_id"] != "1" {
		t.Errorf("category_id = %v, want 1", resp["category_id"])
	}
	if resp["category_name"] != "Groceries" {
		t.Errorf("category_name = %v, want Groceries", resp["category_name"])
	}
}

func TestScanUnknownCategoryFallsBackToOther(t *testing.T) {
	scanner := &fakeScanner{draft: &scan.Draft{
		Name:         "Kiosk",
		Amount:       3.50,
		Date:         "2025-06-09",
		CategoryName: "Souvenirs",
	}}
	srv := newTestServer(t, scanner)

	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, scanRequest(t, []byte("img")))
	resp := decodeBody[map[string]any](t, rec)
	if resp["category_id"] != "8" {
		t.Errorf("category_id = %v, want 8 (Other)", resp["category_id"])
	}
	if resp["category_name"] != "Other" {
		t.Errorf("category_name = %v, want Other", resp["category_name"])
	}
}

func TestScanWithoutScannerIs503(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, scanRequest(t, []byte("img")))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("scan without scanner = %d, want 503", rec.Code)
	}
}

func TestScanFailureIs502(t *testing.T) {
	srv := newTestServer(t, &fakeScanner{err: errors.New("model unavailable")})

	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, scanRequest(t, []byte("img")))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("failed scan = %d, want 502", rec.Code)
	}
	resp := decodeBody[map[string]any](t, rec)
	if resp["error"] != "scan failed" {
		t.Errorf("error = %v, want scan failed", resp["error"])
	}
}

func TestScanMissingImageIs400(t *testing.T) {
	srv := newTestServer(t, &fakeScanner{draft: &scan.Draft{}})

	req := httptest.NewRequest(http.MethodPost, "/api/scan", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("scan without image = %d, want 400", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < 10; i++ {
		if !rl.allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.allow("1.2.3.4") {
		t.Error("11th request should be rejected")
	}
	if !rl.allow("5.6.7.8") {
		t.Error("different client should be allowed")
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodGet, "/api/expenses", nil)
	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodPatch, "/api/expenses", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("PATCH /api/expenses = %d, want 405", rec.Code)
	}
}

func TestAggregateKey(t *testing.T) {
	if got := aggregateKey(core.NewDate(2025, 6, 1)); got != "2025-6" {
		t.Errorf("aggregateKey = %q, want 2025-6", got)
	}
	if got := aggregateKey(core.NewDate(2024, 12, 31)); got != "2024-12" {
		t.Errorf("aggregateKey = %q, want 2024-12", got)
	}
}
