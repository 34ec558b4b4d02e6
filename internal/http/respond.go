package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"tally/internal/core"
	"tally/internal/ledger"
)

// errorResponse is the envelope for every non-2xx JSON body.
type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message, reason string) {
	writeJSON(w, status, errorResponse{Error: message, Reason: reason})
}

// writeDomainError maps a ledger or core error to its HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrExpenseNotFound),
		errors.Is(err, ledger.ErrCategoryNotFound):
		writeError(w, http.StatusNotFound, "not found", err.Error())
	case errors.Is(err, ledger.ErrCategoryInUse):
		writeError(w, http.StatusConflict, "category in use", err.Error())
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrEmptyEmoji),
		errors.Is(err, core.ErrNameTooLong):
		writeError(w, http.StatusUnprocessableEntity, "invalid input", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}
