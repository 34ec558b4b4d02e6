package http

import (
	"encoding/json"
	"net/http"

	"tally/internal/core"
	applog "tally/internal/log"
)

type categoryRequest struct {
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories := s.ledger.Categories()
	if categories == nil {
		categories = []core.Category{}
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request", err.Error())
		return
	}

	cat, err := s.ledger.AddCategory(r.Context(), req.Name, req.Emoji)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.purgeAggregates()

	applog.FromContext(r.Context()).InfoContext(r.Context(), "category created",
		applog.FieldCategoryID, cat.ID)

	writeJSON(w, http.StatusCreated, cat)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.ledger.DeleteCategory(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	s.purgeAggregates()

	w.WriteHeader(http.StatusNoContent)
}
