package http

import (
	"context"
	"io"
	"net/http"

	applog "tally/internal/log"
	"tally/internal/scan"
)

const maxReceiptBytes = 10 << 20 // 10 MiB

// scanResponse is the expense draft returned to the client for confirmation.
// Nothing is written to the ledger until the client submits the draft.
type scanResponse struct {
	Name         string `json:"name"`
	AmountCents  int64  `json:"amount_cents"`
	Date         string `json:"date"`
	CategoryID   string `json:"category_id,omitempty"`
	CategoryName string `json:"category_name"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if s.scanner == nil {
		writeError(w, http.StatusServiceUnavailable, "scanning unavailable", "no scanner configured, enter the expense manually")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxReceiptBytes)
	if err := r.ParseMultipartForm(maxReceiptBytes); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request", "expected multipart form with an image field")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request", "missing image field")
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request", "could not read image")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}

	logger := applog.FromContext(r.Context())
	categories := s.ledger.Categories()

	ctx, cancel := context.WithTimeout(r.Context(), s.scanTimeout)
	defer cancel()

	draft, err := s.scanner.Scan(ctx, image, mimeType, scan.CategoryNames(categories))
	if err != nil {
		logger.ErrorContext(r.Context(), "receipt scan failed",
			applog.FieldOperation, applog.OpScan,
			applog.FieldError, err)
		writeError(w, http.StatusBadGateway, "scan failed", "could not read the receipt, enter the expense manually")
		return
	}

	resp := scanResponse{
		Name:         draft.Name,
		AmountCents:  draft.AmountCents(),
		Date:         draft.Date,
		CategoryName: draft.CategoryName,
	}
	if cat, ok := scan.MatchCategory(categories, draft.CategoryName); ok {
		resp.CategoryID = cat.ID
		resp.CategoryName = cat.Name
	}

	logger.InfoContext(r.Context(), "receipt scanned",
		applog.FieldOperation, applog.OpScan,
		applog.FieldAmountCents, resp.AmountCents,
		applog.FieldCategoryID, resp.CategoryID)

	writeJSON(w, http.StatusOK, resp)
}
