package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FACorreiaa/echo-reconcile/internal/domain/common"
)

// PgxPool abstracts the subset of pgxpool.Pool used by the repository to allow mocking in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ PgxPool = (*pgxpool.Pool)(nil)

const (
	listOpenInvoicesQuery = `
		SELECT id, vendor_name, invoice_date, total_minor, description, currency_code
		FROM invoices
		WHERE reconciled_at IS NULL
		ORDER BY invoice_date, id`

	upsertInvoicesPrefix = `
		INSERT INTO invoices (id, vendor_name, invoice_date, total_minor, description, currency_code)
		VALUES `

	upsertInvoicesSuffix = `
		ON CONFLICT (id) DO UPDATE SET
			vendor_name = EXCLUDED.vendor_name,
			invoice_date = EXCLUDED.invoice_date,
			total_minor = EXCLUDED.total_minor,
			description = EXCLUDED.description,
			currency_code = EXCLUDED.currency_code,
			updated_at = NOW()`

	createRunQuery = `
		INSERT INTO reconciliation_runs (
			id, strategy, total, matched, unmatched, amount_mismatch, duplicate_invoice, embedding_failures
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	getRunQuery = `
		SELECT id, strategy, total, matched, unmatched, amount_mismatch, duplicate_invoice,
		       embedding_failures, created_at
		FROM reconciliation_runs WHERE id = $1`

	markReconciledQuery = `
		UPDATE invoices SET
			reconciled_at = NOW(), reconciliation_run_id = $2,
			reconciled_transaction_id = $3, match_confidence = $4, audit_flags = $5
		WHERE id = $1 AND reconciled_at IS NULL`
)

const invoiceColumns = 6

// PostgresReconcileRepository implements ReconcileRepository using PostgreSQL
type PostgresReconcileRepository struct {
	pgpool PgxPool
}

func NewPostgresReconcileRepository(pgpool PgxPool) *PostgresReconcileRepository {
	return &PostgresReconcileRepository{pgpool: pgpool}
}

func (r *PostgresReconcileRepository) ListOpenInvoices(ctx context.Context) ([]common.Invoice, error) {
	rows, err := r.pgpool.Query(ctx, listOpenInvoicesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list open invoices: %w", err)
	}
	defer rows.Close()

	var invoices []common.Invoice
	for rows.Next() {
		var (
			inv   common.Invoice
			minor int64
		)
		if err := rows.Scan(&inv.ID, &inv.VendorName, &inv.InvoiceDate, &minor, &inv.Description, &inv.Currency); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		inv.TotalAmount = common.FromMinor(minor)
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invoices: %w", err)
	}
	return invoices, nil
}

// UpsertInvoices stores invoices supplied by the caller so they can later be
// marked reconciled.
func (r *PostgresReconcileRepository) UpsertInvoices(ctx context.Context, invoices []common.Invoice) (int, error) {
	if len(invoices) == 0 {
		return 0, nil
	}

	placeholders := make([]string, 0, len(invoices))
	args := make([]any, 0, len(invoices)*invoiceColumns)
	for i, inv := range invoices {
		base := i * invoiceColumns
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6))
		args = append(args, inv.ID, inv.VendorName, inv.InvoiceDate, common.ToMinor(inv.TotalAmount), inv.Description, inv.Currency)
	}

	query := upsertInvoicesPrefix + strings.Join(placeholders, ", ") + upsertInvoicesSuffix
	tag, err := r.pgpool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert invoices: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PostgresReconcileRepository) CreateRun(ctx context.Context, run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	err := r.pgpool.QueryRow(ctx, createRunQuery,
		run.ID, run.Strategy, run.Total, run.Matched, run.Unmatched,
		run.AmountMismatch, run.DuplicateInvoice, run.EmbeddingFailures,
	).Scan(&run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create reconciliation run: %w", err)
	}
	return nil
}

func (r *PostgresReconcileRepository) GetRunByID(ctx context.Context, id uuid.UUID) (*Run, error) {
	var run Run
	err := r.pgpool.QueryRow(ctx, getRunQuery, id).Scan(
		&run.ID, &run.Strategy, &run.Total, &run.Matched, &run.Unmatched,
		&run.AmountMismatch, &run.DuplicateInvoice, &run.EmbeddingFailures, &run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reconciliation run: %w", err)
	}
	return &run, nil
}

func (r *PostgresReconcileRepository) MarkInvoicesReconciled(ctx context.Context, runID uuid.UUID, links []Reconciled) error {
	if len(links) == 0 {
		return nil
	}

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, link := range links {
		flags := make([]string, len(link.Flags))
		for i, f := range link.Flags {
			flags[i] = string(f)
		}
		if _, err := tx.Exec(ctx, markReconciledQuery, link.InvoiceID, runID, link.TransactionID, link.Confidence, flags); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to mark invoice %s reconciled: %w", link.InvoiceID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reconciliation: %w", err)
	}
	return nil
}
