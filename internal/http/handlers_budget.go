package http

import (
	"encoding/json"
	"net/http"

	"tally/internal/core"
)

type budgetPayload struct {
	BudgetCents int64 `json:"budget_cents"`
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, budgetPayload{BudgetCents: s.ledger.Budget().Cents})
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request", err.Error())
		return
	}

	if err := s.ledger.SetBudget(r.Context(), core.Money{Cents: req.BudgetCents}); err != nil {
		writeDomainError(w, err)
		return
	}
	s.purgeAggregates()

	writeJSON(w, http.StatusOK, budgetPayload{BudgetCents: s.ledger.Budget().Cents})
}
