// Package handler exposes reconciliation over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/FACorreiaa/echo-reconcile/internal/domain/common"
	importservice "github.com/FACorreiaa/echo-reconcile/internal/domain/import/service"
	"github.com/FACorreiaa/echo-reconcile/internal/domain/import/sniffer"
	"github.com/FACorreiaa/echo-reconcile/internal/domain/reconcile/embedding"
	"github.com/FACorreiaa/echo-reconcile/internal/domain/reconcile/service"
	"github.com/FACorreiaa/echo-reconcile/pkg/interceptors"
)

// ReconcileRequest is the body of POST /v1/reconciliations. Transactions
// parsed from StatementCSV are appended to Transactions. A nil Invoices
// reconciles against the open invoices in the store.
type ReconcileRequest struct {
	StatementCSV string               `json:"statement_csv,omitempty"`
	Transactions []common.Transaction `json:"transactions,omitempty"`
	Invoices     []common.Invoice     `json:"invoices,omitempty"`
}

// ReconcileResponse wraps the pass result with rows skipped while parsing.
type ReconcileResponse struct {
	*service.Result
	SkippedRows int `json:"skipped_rows,omitempty"`
}

// ReconcileHandler serves the /v1/reconciliations endpoints.
type ReconcileHandler struct {
	svc      *service.ReconcileService
	importer *importservice.ImportService
	logger   *slog.Logger
}

// NewReconcileHandler creates a new reconcile handler
func NewReconcileHandler(svc *service.ReconcileService, importer *importservice.ImportService, logger *slog.Logger) *ReconcileHandler {
	return &ReconcileHandler{svc: svc, importer: importer, logger: logger}
}

// Register mounts the handler's routes on mux.
func (h *ReconcileHandler) Register(mux *http.ServeMux, wrap func(route string, next http.Handler) http.Handler) {
	mux.Handle("POST /v1/reconciliations", wrap("/v1/reconciliations", http.HandlerFunc(h.Reconcile)))
	mux.Handle("GET /v1/reconciliations/{id}", wrap("/v1/reconciliations/{id}", http.HandlerFunc(h.GetRun)))
}

// Reconcile handles POST /v1/reconciliations
func (h *ReconcileHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		interceptors.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	txs := req.Transactions
	skipped := 0
	if req.StatementCSV != "" {
		parsed, err := h.importer.ParseStatement(r.Context(), []byte(req.StatementCSV))
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		txs = append(txs, parsed.Transactions...)
		skipped = len(parsed.Skipped)
	}
	if len(txs) == 0 {
		interceptors.WriteError(w, http.StatusBadRequest, "statement_csv or transactions is required")
		return
	}

	var (
		res *service.Result
		err error
	)
	if req.Invoices == nil {
		res, err = h.svc.ReconcileOpen(r.Context(), txs)
		if errors.Is(err, common.ErrNotConfigured) {
			interceptors.WriteError(w, http.StatusBadRequest, "invoices are required when no invoice store is configured")
			return
		}
	} else {
		res, err = h.svc.Reconcile(r.Context(), txs, req.Invoices)
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	interceptors.WriteJSON(w, http.StatusOK, ReconcileResponse{Result: res, SkippedRows: skipped})
}

// GetRun handles GET /v1/reconciliations/{id}
func (h *ReconcileHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		interceptors.WriteError(w, http.StatusBadRequest, "invalid reconciliation id")
		return
	}

	run, err := h.svc.GetRun(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	interceptors.WriteJSON(w, http.StatusOK, run)
}

func (h *ReconcileHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sniffer.ErrEmptyFile),
		errors.Is(err, sniffer.ErrNoAmountColumn),
		errors.Is(err, common.ErrBadRequest):
		interceptors.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrNotFound):
		interceptors.WriteError(w, http.StatusNotFound, "reconciliation not found")
	case errors.Is(err, embedding.ErrMissingCredentials),
		errors.Is(err, embedding.ErrProviderUnavailable):
		h.logger.Warn("embedding provider unavailable", "error", err)
		interceptors.WriteError(w, http.StatusServiceUnavailable, "embedding provider unavailable")
	case errors.Is(err, common.ErrNotConfigured):
		interceptors.WriteError(w, http.StatusServiceUnavailable, "reconciliation storage is not configured")
	default:
		h.logger.Error("reconciliation failed", "error", err)
		interceptors.WriteError(w, http.StatusInternalServerError, "reconciliation failed")
	}
}
