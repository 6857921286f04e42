package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/echo-reconcile/internal/domain/common"
)

func TestPostgresImportRepository_CreateImportJob(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	fingerprint := "abc123"
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(createImportJobQuery)).
		WithArgs(pgxmock.AnyArg(), "statement.csv", &fingerprint, ";", JobRunning).
		WillReturnRows(pgxmock.NewRows([]string{"requested_at"}).AddRow(now))

	repo := NewPostgresImportRepository(mock)
	job := &ImportJob{FileName: "statement.csv", Fingerprint: &fingerprint, Delimiter: ";"}
	if err := repo.CreateImportJob(context.Background(), job); err != nil {
		t.Fatalf("CreateImportJob: %v", err)
	}
	if job.ID == uuid.Nil || job.Status != JobRunning {
		t.Fatalf("defaults not applied: %+v", job)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresImportRepository_GetImportJobByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	rows := pgxmock.NewRows([]string{
		"id", "file_name", "fingerprint", "delimiter", "status", "error_message",
		"rows_total", "rows_imported", "rows_failed", "requested_at", "finished_at",
	})
	mock.ExpectQuery(regexp.QuoteMeta(getImportJobQuery)).WithArgs(id).WillReturnRows(rows)

	repo := NewPostgresImportRepository(mock)
	_, err = repo.GetImportJobByID(context.Background(), id)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresImportRepository_FinishImportJob(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	msg := "insert failed"
	mock.ExpectExec(regexp.QuoteMeta(finishImportJobQuery)).
		WithArgs(id, JobFailed, 10, 2, &msg).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewPostgresImportRepository(mock)
	if err := repo.FinishImportJob(context.Background(), id, JobFailed, 10, 2, &msg); err != nil {
		t.Fatalf("FinishImportJob: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresImportRepository_BulkInsertTransactions(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	jobID := uuid.New()
	date := "2024-01-02"
	txs := []common.Transaction{
		{ID: "tx-1", Date: date, Description: "Rent", Amount: decimal.RequireFromString("-500"), ExternalID: "ext-1"},
		{ID: "tx-2", Date: "", Description: "Refund", Amount: decimal.RequireFromString("200.10"), ExternalID: "ext-2"},
	}

	var noDate *string
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions")).
		WithArgs(
			"tx-1", jobID, &date, "Rent", int64(-50000), "EUR", "ext-1",
			"tx-2", jobID, noDate, "Refund", int64(20010), "EUR", "ext-2",
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewPostgresImportRepository(mock)
	n, err := repo.BulkInsertTransactions(context.Background(), jobID, "EUR", txs)
	if err != nil {
		t.Fatalf("BulkInsertTransactions: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 new row (one duplicate external id), got %d", n)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
