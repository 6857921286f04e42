// Package service provides the import orchestration logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/echo-reconcile/internal/domain/common"
	"github.com/FACorreiaa/echo-reconcile/internal/domain/import/materializer"
	"github.com/FACorreiaa/echo-reconcile/internal/domain/import/repository"
	"github.com/FACorreiaa/echo-reconcile/internal/domain/import/sniffer"
	"github.com/FACorreiaa/echo-reconcile/pkg/observability"
)

// AnalyzeResult contains the result of analyzing an uploaded file
type AnalyzeResult struct {
	Delimiter   string         `json:"delimiter"`
	Layout      sniffer.Layout `json:"layout"`
	Headers     []string       `json:"headers,omitempty"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	SampleRows  [][]string     `json:"sample_rows"`
	// CanImport is false when no amount-bearing column was found.
	CanImport bool `json:"can_import"`
}

// ParseResult holds the canonical transactions of one statement.
type ParseResult struct {
	materializer.Result
	Delimiter   string `json:"delimiter"`
	Fingerprint string `json:"fingerprint,omitempty"`
	RowsTotal   int    `json:"rows_total"`
}

// ImportResult contains the result of an import operation
type ImportResult struct {
	JobID         uuid.UUID `json:"job_id"`
	RowsTotal     int       `json:"rows_total"`
	RowsImported  int       `json:"rows_imported"`
	RowsDuplicate int       `json:"rows_duplicate"`
	RowsFailed    int       `json:"rows_failed"`
	Errors        []string  `json:"errors,omitempty"`
}

// ImportService orchestrates file analysis and import operations
type ImportService struct {
	repo     repository.ImportRepository
	logger   *slog.Logger
	tracer   trace.Tracer
	currency string
}

const (
	importBatchSize = 500
	defaultCurrency = "EUR"
)

// NewImportService creates a new import service. repo may be nil, in which
// case ImportStatement reports common.ErrNotConfigured.
func NewImportService(repo repository.ImportRepository, logger *slog.Logger) *ImportService {
	return &ImportService{
		repo:     repo,
		logger:   logger,
		tracer:   otel.Tracer("echo-reconcile/import"),
		currency: defaultCurrency,
	}
}

// AnalyzeFile detects the delimiter, header and column roles of a file.
func (s *ImportService) AnalyzeFile(ctx context.Context, fileData []byte) (*AnalyzeResult, error) {
	_, span := s.tracer.Start(ctx, "import.AnalyzeFile")
	defer span.End()

	config, err := sniffer.DetectConfig(fileData)
	if err != nil && !errors.Is(err, sniffer.ErrNoAmountColumn) {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to analyze file: %w", err)
	}

	return &AnalyzeResult{
		Delimiter:   string(config.Delimiter),
		Layout:      config.Layout,
		Headers:     config.Headers,
		Fingerprint: config.Fingerprint,
		SampleRows:  config.SampleRows,
		CanImport:   err == nil,
	}, nil
}

// ParseStatement turns a CSV/TSV export into canonical transactions.
// Malformed rows are reported in Skipped and never fail the call.
func (s *ImportService) ParseStatement(ctx context.Context, fileData []byte) (*ParseResult, error) {
	_, span := s.tracer.Start(ctx, "import.ParseStatement")
	defer span.End()

	config, err := sniffer.DetectConfig(fileData)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to detect file config: %w", err)
	}

	res := materializer.FromConfig(config)
	for _, skipped := range res.Skipped {
		s.logger.Debug("skipped statement row", "line", skipped.Line, "reason", skipped.Reason)
	}
	if res.UndatedRows > 0 {
		s.logger.Debug("rows kept without a date", "count", res.UndatedRows)
	}

	observability.StatementRowsTotal.WithLabelValues("parsed").Add(float64(len(res.Transactions)))
	observability.StatementRowsTotal.WithLabelValues("skipped").Add(float64(len(res.Skipped)))
	span.SetAttributes(
		attribute.Int("import.rows_parsed", len(res.Transactions)),
		attribute.Int("import.rows_skipped", len(res.Skipped)),
	)

	return &ParseResult{
		Result:      res,
		Delimiter:   string(config.Delimiter),
		Fingerprint: config.Fingerprint,
		RowsTotal:   len(config.DataRows()),
	}, nil
}

// ImportStatement parses a file and persists its transactions in batches,
// tracked by an import job.
func (s *ImportService) ImportStatement(ctx context.Context, fileName string, fileData []byte) (*ImportResult, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("import statement: %w", common.ErrNotConfigured)
	}

	parsed, err := s.ParseStatement(ctx, fileData)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "import.ImportStatement")
	defer span.End()

	job := &repository.ImportJob{
		FileName:  fileName,
		Delimiter: parsed.Delimiter,
		Status:    repository.JobRunning,
	}
	if parsed.Fingerprint != "" {
		job.Fingerprint = &parsed.Fingerprint
	}
	if err := s.repo.CreateImportJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create import job: %w", err)
	}

	errs := make([]string, 0, len(parsed.Skipped))
	for _, skipped := range parsed.Skipped {
		errs = append(errs, fmt.Sprintf("line %d: %s", skipped.Line, skipped.Reason))
	}
	rowsFailed := len(parsed.Skipped)
	rowsImported := 0
	started := time.Now()

	txs := parsed.Transactions
	for start := 0; start < len(txs); start += importBatchSize {
		end := min(start+importBatchSize, len(txs))
		inserted, err := s.repo.BulkInsertTransactions(ctx, job.ID, s.currency, txs[start:end])
		if err != nil {
			errMsg := err.Error()
			if finishErr := s.repo.FinishImportJob(ctx, job.ID, repository.JobFailed, rowsImported, rowsFailed, &errMsg); finishErr != nil {
				s.logger.Warn("failed to finish import job", "error", finishErr)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, errMsg)
			return nil, fmt.Errorf("failed to insert transactions: %w", err)
		}
		rowsImported += inserted

		if err := s.repo.UpdateImportJobProgress(ctx, job.ID, rowsImported, rowsFailed); err != nil {
			s.logger.Warn("failed to update import job progress", "error", err)
		}
	}

	if err := s.repo.FinishImportJob(ctx, job.ID, repository.JobSucceeded, rowsImported, rowsFailed, nil); err != nil {
		s.logger.Warn("failed to finish import job", "error", err)
	}

	s.logger.Info("statement imported",
		"job_id", job.ID,
		"rows_imported", rowsImported,
		"rows_failed", rowsFailed,
		"duration", time.Since(started),
	)

	return &ImportResult{
		JobID:         job.ID,
		RowsTotal:     parsed.RowsTotal,
		RowsImported:  rowsImported,
		RowsDuplicate: len(txs) - rowsImported,
		RowsFailed:    rowsFailed,
		Errors:        errs,
	}, nil
}

// GetImportJob returns a stored import job.
func (s *ImportService) GetImportJob(ctx context.Context, id uuid.UUID) (*repository.ImportJob, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("get import job: %w", common.ErrNotConfigured)
	}
	return s.repo.GetImportJobByID(ctx, id)
}
