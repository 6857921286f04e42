// Package repository provides data access for import-related entities.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/echo-reconcile/internal/domain/common"
)

// Import job statuses.
const (
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

// ImportJob tracks the status of a statement import
type ImportJob struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	FileName     string     `json:"file_name" db:"file_name"`
	Fingerprint  *string    `json:"fingerprint" db:"fingerprint"` // NULL when the file had no header
	Delimiter    string     `json:"delimiter" db:"delimiter"`
	Status       string     `json:"status" db:"status"` // "running", "succeeded", "failed"
	ErrorMessage *string    `json:"error_message" db:"error_message"`
	RowsTotal    int        `json:"rows_total" db:"rows_total"`
	RowsImported int        `json:"rows_imported" db:"rows_imported"`
	RowsFailed   int        `json:"rows_failed" db:"rows_failed"`
	RequestedAt  time.Time  `json:"requested_at" db:"requested_at"`
	FinishedAt   *time.Time `json:"finished_at" db:"finished_at"`
}

// ImportRepository defines data access operations for imports
type ImportRepository interface {
	CreateImportJob(ctx context.Context, job *ImportJob) error
	GetImportJobByID(ctx context.Context, id uuid.UUID) (*ImportJob, error)
	UpdateImportJobProgress(ctx context.Context, id uuid.UUID, rowsImported, rowsFailed int) error
	FinishImportJob(ctx context.Context, id uuid.UUID, status string, rowsImported, rowsFailed int, errorMessage *string) error

	// BulkInsertTransactions inserts one batch; rows whose external_id already
	// exists are ignored. It returns the number of new rows.
	BulkInsertTransactions(ctx context.Context, jobID uuid.UUID, currency string, txs []common.Transaction) (int, error)
}
