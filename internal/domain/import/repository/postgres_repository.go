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
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ PgxPool = (*pgxpool.Pool)(nil)

const (
	createImportJobQuery = `
		INSERT INTO import_jobs (id, file_name, fingerprint, delimiter, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING requested_at`

	getImportJobQuery = `
		SELECT id, file_name, fingerprint, delimiter, status, error_message,
		       rows_total, rows_imported, rows_failed, requested_at, finished_at
		FROM import_jobs WHERE id = $1`

	updateImportJobProgressQuery = `UPDATE import_jobs SET rows_imported = $2, rows_failed = $3 WHERE id = $1`

	finishImportJobQuery = `
		UPDATE import_jobs SET
			status = $2, rows_imported = $3, rows_failed = $4,
			error_message = $5, finished_at = NOW(), rows_total = $3 + $4
		WHERE id = $1`

	insertTransactionsPrefix = `
		INSERT INTO transactions (id, import_job_id, posted_on, description, amount_minor, currency_code, external_id)
		VALUES `

	insertTransactionsSuffix = `
		ON CONFLICT (external_id) DO NOTHING`
)

const transactionColumns = 7

// PostgresImportRepository implements ImportRepository using PostgreSQL
type PostgresImportRepository struct {
	pgpool PgxPool
}

// NewPostgresImportRepository creates a new PostgreSQL-backed import repository
func NewPostgresImportRepository(pgpool PgxPool) *PostgresImportRepository {
	return &PostgresImportRepository{pgpool: pgpool}
}

// CreateImportJob creates a new import job
func (r *PostgresImportRepository) CreateImportJob(ctx context.Context, job *ImportJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = JobRunning
	}

	err := r.pgpool.QueryRow(ctx, createImportJobQuery,
		job.ID, job.FileName, job.Fingerprint, job.Delimiter, job.Status,
	).Scan(&job.RequestedAt)
	if err != nil {
		return fmt.Errorf("failed to create import job: %w", err)
	}
	return nil
}

// GetImportJobByID retrieves an import job by ID
func (r *PostgresImportRepository) GetImportJobByID(ctx context.Context, id uuid.UUID) (*ImportJob, error) {
	var job ImportJob
	err := r.pgpool.QueryRow(ctx, getImportJobQuery, id).Scan(
		&job.ID, &job.FileName, &job.Fingerprint, &job.Delimiter, &job.Status, &job.ErrorMessage,
		&job.RowsTotal, &job.RowsImported, &job.RowsFailed, &job.RequestedAt, &job.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import job: %w", err)
	}
	return &job, nil
}

// UpdateImportJobProgress updates the row counts for an import job
func (r *PostgresImportRepository) UpdateImportJobProgress(ctx context.Context, id uuid.UUID, rowsImported, rowsFailed int) error {
	if _, err := r.pgpool.Exec(ctx, updateImportJobProgressQuery, id, rowsImported, rowsFailed); err != nil {
		return fmt.Errorf("failed to update import job progress: %w", err)
	}
	return nil
}

// FinishImportJob marks an import job as complete
func (r *PostgresImportRepository) FinishImportJob(ctx context.Context, id uuid.UUID, status string, rowsImported, rowsFailed int, errorMessage *string) error {
	if _, err := r.pgpool.Exec(ctx, finishImportJobQuery, id, status, rowsImported, rowsFailed, errorMessage); err != nil {
		return fmt.Errorf("failed to finish import job: %w", err)
	}
	return nil
}

// BulkInsertTransactions inserts a batch with a single multi-row statement.
func (r *PostgresImportRepository) BulkInsertTransactions(ctx context.Context, jobID uuid.UUID, currency string, txs []common.Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	placeholders := make([]string, 0, len(txs))
	args := make([]any, 0, len(txs)*transactionColumns)
	for i, tx := range txs {
		base := i * transactionColumns
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7))

		var postedOn *string // undated rows are stored with a NULL date
		if tx.Date != "" {
			postedOn = &tx.Date
		}
		args = append(args, tx.ID, jobID, postedOn, tx.Description, common.ToMinor(tx.Amount), currency, tx.ExternalID)
	}

	query := insertTransactionsPrefix + strings.Join(placeholders, ", ") + insertTransactionsSuffix
	tag, err := r.pgpool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk insert transactions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
