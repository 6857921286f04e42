// Package handler exposes statement analysis, parsing and import over HTTP.
package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/FACorreiaa/echo-reconcile/internal/domain/common"
	"github.com/FACorreiaa/echo-reconcile/internal/domain/import/service"
	"github.com/FACorreiaa/echo-reconcile/internal/domain/import/sniffer"
	"github.com/FACorreiaa/echo-reconcile/pkg/interceptors"
)

const maxImportErrorsInResponse = 5

// ImportHandler serves the /v1/statements endpoints.
type ImportHandler struct {
	svc    *service.ImportService
	logger *slog.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(svc *service.ImportService, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{svc: svc, logger: logger}
}

// Register mounts the handler's routes on mux.
func (h *ImportHandler) Register(mux *http.ServeMux, wrap func(route string, next http.Handler) http.Handler) {
	mux.Handle("POST /v1/statements/analyze", wrap("/v1/statements/analyze", http.HandlerFunc(h.Analyze)))
	mux.Handle("POST /v1/statements/parse", wrap("/v1/statements/parse", http.HandlerFunc(h.Parse)))
	mux.Handle("POST /v1/statements/import", wrap("/v1/statements/import", http.HandlerFunc(h.Import)))
	mux.Handle("GET /v1/statements/imports/{id}", wrap("/v1/statements/imports/{id}", http.HandlerFunc(h.GetImportJob)))
}

// Analyze handles POST /v1/statements/analyze
func (h *ImportHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readBody(w, r)
	if !ok {
		return
	}

	res, err := h.svc.AnalyzeFile(r.Context(), data)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	interceptors.WriteJSON(w, http.StatusOK, res)
}

// Parse handles POST /v1/statements/parse
func (h *ImportHandler) Parse(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readBody(w, r)
	if !ok {
		return
	}

	res, err := h.svc.ParseStatement(r.Context(), data)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	interceptors.WriteJSON(w, http.StatusOK, res)
}

// Import handles POST /v1/statements/import?file_name=...
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readBody(w, r)
	if !ok {
		return
	}

	fileName := filepath.Base(r.URL.Query().Get("file_name"))
	if fileName == "." || fileName == "/" {
		fileName = "statement.csv"
	}

	res, err := h.svc.ImportStatement(r.Context(), fileName, data)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if res.RowsImported == 0 && res.RowsDuplicate == 0 && len(res.Errors) > 0 {
		interceptors.WriteError(w, http.StatusBadRequest, formatImportErrors(res.Errors))
		return
	}
	interceptors.WriteJSON(w, http.StatusOK, res)
}

// GetImportJob handles GET /v1/statements/imports/{id}
func (h *ImportHandler) GetImportJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		interceptors.WriteError(w, http.StatusBadRequest, "invalid import job id")
		return
	}

	job, err := h.svc.GetImportJob(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	interceptors.WriteJSON(w, http.StatusOK, job)
}

func (h *ImportHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			interceptors.WriteError(w, http.StatusRequestEntityTooLarge, "statement too large")
			return nil, false
		}
		interceptors.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	if len(data) == 0 {
		interceptors.WriteError(w, http.StatusBadRequest, "statement body is required")
		return nil, false
	}
	return data, true
}

func (h *ImportHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sniffer.ErrEmptyFile),
		errors.Is(err, sniffer.ErrNoAmountColumn),
		errors.Is(err, common.ErrBadRequest):
		interceptors.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrNotFound):
		interceptors.WriteError(w, http.StatusNotFound, "import job not found")
	case errors.Is(err, common.ErrNotConfigured):
		interceptors.WriteError(w, http.StatusServiceUnavailable, "statement storage is not configured")
	default:
		h.logger.Error("statement request failed", "error", err)
		interceptors.WriteError(w, http.StatusInternalServerError, "failed to process statement")
	}
}

func formatImportErrors(errs []string) string {
	if len(errs) == 0 {
		return "import failed: no valid rows"
	}

	limit := min(len(errs), maxImportErrorsInResponse)
	message := fmt.Sprintf("import failed: %d error(s). ", len(errs))
	message += strings.Join(errs[:limit], "; ")
	if limit < len(errs) {
		message += fmt.Sprintf("; and %d more", len(errs)-limit)
	}
	return message
}
