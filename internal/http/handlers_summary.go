package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"tally/internal/core"
	applog "tally/internal/log"
)

// monthRef resolves the optional year/month query params, defaulting to the
// current month. The day component is irrelevant for month aggregates.
func monthRef(r *http.Request) (core.Date, bool) {
	now := time.Now()
	year := now.Year()
	month := int(now.Month())

	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 {
			return core.Date{}, false
		}
		year = y
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return core.Date{}, false
		}
		month = m
	}

	return core.NewDate(year, month, 1), true
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ref, ok := monthRef(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid input", "year and month must be positive integers, month in 1..12")
		return
	}

	key := aggregateKey(ref)
	if summary, found := s.summaryCache.Get(key); found {
		applog.FromContext(r.Context()).DebugContext(r.Context(), "summary cache hit", "key", key)
		writeJSON(w, http.StatusOK, summary)
		return
	}

	summary := s.ledger.Summary(ref)
	s.summaryCache.Set(key, summary)
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	ref, ok := monthRef(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid input", "year and month must be positive integers, month in 1..12")
		return
	}

	key := aggregateKey(ref)
	if totals, found := s.breakdownCache.Get(key); found {
		applog.FromContext(r.Context()).DebugContext(r.Context(), "breakdown cache hit", "key", key)
		writeJSON(w, http.StatusOK, totals)
		return
	}

	totals := s.ledger.CategoryTotals(ref)
	if totals == nil {
		totals = []core.CategoryTotal{}
	}
	s.breakdownCache.Set(key, totals)
	writeJSON(w, http.StatusOK, totals)
}
