package http

import (
	"encoding/json"
	"net/http"

	"tally/internal/core"
	applog "tally/internal/log"
)

type expenseRequest struct {
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
	Date        string `json:"date"`
	CategoryID  string `json:"category_id"`
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses := s.ledger.Expenses()
	if expenses == nil {
		expenses = []core.Expense{}
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request", err.Error())
		return
	}

	date, err := core.ParseDate(req.Date)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	exp, err := s.ledger.AddExpense(r.Context(), req.Name, core.Money{Cents: req.AmountCents}, date, req.CategoryID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.purgeAggregates()

	applog.FromContext(r.Context()).InfoContext(r.Context(), "expense created",
		applog.FieldExpenseID, exp.ID,
		applog.FieldAmountCents, exp.Amount.Cents,
		applog.FieldCategoryID, exp.CategoryID)

	writeJSON(w, http.StatusCreated, exp)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request", err.Error())
		return
	}

	date, err := core.ParseDate(req.Date)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	exp := core.Expense{
		ID:         id,
		Name:       req.Name,
		Amount:     core.Money{Cents: req.AmountCents},
		Date:       date,
		CategoryID: req.CategoryID,
	}
	if err := s.ledger.UpdateExpense(r.Context(), exp); err != nil {
		writeDomainError(w, err)
		return
	}
	s.purgeAggregates()

	writeJSON(w, http.StatusOK, exp)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.ledger.DeleteExpense(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	s.purgeAggregates()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGroupedExpenses(w http.ResponseWriter, r *http.Request) {
	groups := s.ledger.GroupedExpenses()
	if groups == nil {
		groups = []core.DateGroup{}
	}
	writeJSON(w, http.StatusOK, groups)
}
