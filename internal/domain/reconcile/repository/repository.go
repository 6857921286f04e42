// Package repository provides data access for invoices and reconciliation runs.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/echo-reconcile/internal/domain/common"
)

// Run records one reconciliation pass.
type Run struct {
	ID                uuid.UUID `json:"id" db:"id"`
	Strategy          string    `json:"strategy" db:"strategy"`
	Total             int       `json:"total" db:"total"`
	Matched           int       `json:"matched" db:"matched"`
	Unmatched         int       `json:"unmatched" db:"unmatched"`
	AmountMismatch    int       `json:"amount_mismatch" db:"amount_mismatch"`
	DuplicateInvoice  int       `json:"duplicate_invoice" db:"duplicate_invoice"`
	EmbeddingFailures int       `json:"embedding_failures" db:"embedding_failures"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// Reconciled links a matched invoice to the transaction that paid it.
type Reconciled struct {
	InvoiceID     string
	TransactionID string
	Confidence    float64
	Flags         []common.AuditFlag
}

// ReconcileRepository defines data access operations for reconciliation
type ReconcileRepository interface {
	// ListOpenInvoices returns invoices not yet reconciled, oldest first.
	ListOpenInvoices(ctx context.Context) ([]common.Invoice, error)
	UpsertInvoices(ctx context.Context, invoices []common.Invoice) (int, error)

	CreateRun(ctx context.Context, run *Run) error
	GetRunByID(ctx context.Context, id uuid.UUID) (*Run, error)

	// MarkInvoicesReconciled applies every link atomically.
	MarkInvoicesReconciled(ctx context.Context, runID uuid.UUID, links []Reconciled) error
}
