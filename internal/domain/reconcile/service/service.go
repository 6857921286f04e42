// Package service runs reconciliation passes: duplicate audit, embedding,
// matching and, when a store is configured, persistence of the outcome.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/echo-reconcile/internal/domain/common"
	"github.com/FACorreiaa/echo-reconcile/internal/domain/reconcile/audit"
	"github.com/FACorreiaa/echo-reconcile/internal/domain/reconcile/embedding"
	"github.com/FACorreiaa/echo-reconcile/internal/domain/reconcile/matcher"
	"github.com/FACorreiaa/echo-reconcile/internal/domain/reconcile/repository"
	"github.com/FACorreiaa/echo-reconcile/pkg/observability"
)

// Summary counts the outcome of one pass.
type Summary struct {
	Total             int `json:"total"`
	Matched           int `json:"matched"`
	Unmatched         int `json:"unmatched"`
	AmountMismatch    int `json:"amount_mismatch"`
	DuplicateInvoice  int `json:"duplicate_invoice"`
	EmbeddingFailures int `json:"embedding_failures"`
}

// Result is the outcome of one reconciliation pass.
type Result struct {
	RunID        *uuid.UUID           `json:"run_id,omitempty"`
	Strategy     string               `json:"strategy"`
	Transactions []common.Transaction `json:"transactions"`
	Duplicates   []audit.Group        `json:"duplicates"`
	Summary      Summary              `json:"summary"`
}

// ReconcileService matches bank transactions against invoices.
type ReconcileService struct {
	mu       sync.Mutex
	provider embedding.Provider
	strategy matcher.Strategy
	repo     repository.ReconcileRepository
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewReconcileService wires a service. provider may be nil when no embedding
// credentials are configured; repo may be nil to run without persistence.
func NewReconcileService(provider embedding.Provider, strategy matcher.Strategy, repo repository.ReconcileRepository, logger *slog.Logger) *ReconcileService {
	if strategy == nil {
		strategy = matcher.NewGreedy(matcher.DefaultTolerances())
	}
	return &ReconcileService{
		provider: provider,
		strategy: strategy,
		repo:     repo,
		logger:   logger,
		tracer:   otel.Tracer("echo-reconcile/reconcile"),
	}
}

// Strategy reports the configured strategy name.
func (s *ReconcileService) Strategy() string {
	return s.strategy.Name()
}

// GetRun returns a recorded reconciliation run.
func (s *ReconcileService) GetRun(ctx context.Context, id uuid.UUID) (*repository.Run, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("get run: %w", common.ErrNotConfigured)
	}
	return s.repo.GetRunByID(ctx, id)
}

// ReconcileOpen reconciles transactions against the invoices in the store
// that are not yet reconciled.
func (s *ReconcileService) ReconcileOpen(ctx context.Context, txs []common.Transaction) (*Result, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("load open invoices: %w", common.ErrNotConfigured)
	}
	invoices, err := s.repo.ListOpenInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load open invoices: %w", err)
	}
	return s.reconcile(ctx, txs, invoices, false)
}

// Reconcile runs one pass over the given records. Inputs are never modified;
// every transaction in the result is recomputed from an unmatched state.
func (s *ReconcileService) Reconcile(ctx context.Context, txs []common.Transaction, invoices []common.Invoice) (*Result, error) {
	return s.reconcile(ctx, txs, invoices, true)
}

func (s *ReconcileService) reconcile(ctx context.Context, txs []common.Transaction, invoices []common.Invoice, storeInvoices bool) (*Result, error) {
	if s.provider == nil {
		return nil, embedding.ErrMissingCredentials
	}
	if err := validateInvoices(invoices); err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return emptyResult(s.strategy.Name(), invoices), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "reconcile.Reconcile", trace.WithAttributes(
		attribute.String("reconcile.strategy", s.strategy.Name()),
		attribute.Int("reconcile.transactions", len(txs)),
		attribute.Int("reconcile.invoices", len(invoices)),
	))
	defer span.End()
	started := time.Now()

	dupes, groups := audit.FindDuplicates(invoices)
	if len(groups) > 0 {
		s.logger.Info("duplicate invoices detected", "groups", len(groups))
	}

	texts := make([]string, 0, len(invoices)+len(txs))
	for _, inv := range invoices {
		texts = append(texts, inv.MatchText())
	}
	for _, tx := range txs {
		texts = append(texts, tx.Description)
	}

	vectors, err := s.provider.Embed(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to embed texts: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(texts))
	}

	in := matcher.Input{
		Transactions:       txs,
		Invoices:           invoices,
		InvoiceVectors:     vectors[:len(invoices)],
		TransactionVectors: vectors[len(invoices):],
		Duplicates:         dupes,
	}
	matched := s.strategy.Match(in)

	res := &Result{
		Strategy:     s.strategy.Name(),
		Transactions: matched,
		Duplicates:   groups,
		Summary:      summarize(matched, vectors),
	}
	if res.Duplicates == nil {
		res.Duplicates = []audit.Group{}
	}

	if s.repo != nil {
		runID, err := s.persist(ctx, res, invoices, storeInvoices)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		res.RunID = &runID
	}

	strategy := s.strategy.Name()
	observability.MatchesTotal.WithLabelValues(strategy, "matched").Add(float64(res.Summary.Matched))
	observability.MatchesTotal.WithLabelValues(strategy, "unmatched").Add(float64(res.Summary.Unmatched))
	observability.ReconcileDuration.WithLabelValues(strategy).Observe(time.Since(started).Seconds())

	s.logger.Info("reconciliation finished",
		"strategy", strategy,
		"total", res.Summary.Total,
		"matched", res.Summary.Matched,
		"amount_mismatch", res.Summary.AmountMismatch,
		"duplicate_invoice", res.Summary.DuplicateInvoice,
		"embedding_failures", res.Summary.EmbeddingFailures,
		"duration", time.Since(started),
	)
	return res, nil
}

// validateInvoices rejects invoices without an id and ids used more than once.
// Matches and the invoice store are keyed by id.
func validateInvoices(invoices []common.Invoice) error {
	seen := make(map[string]struct{}, len(invoices))
	for i, inv := range invoices {
		if strings.TrimSpace(inv.ID) == "" {
			return fmt.Errorf("invoice %d has no id: %w", i, common.ErrBadRequest)
		}
		if _, dup := seen[inv.ID]; dup {
			return fmt.Errorf("invoice id %q appears more than once: %w", inv.ID, common.ErrBadRequest)
		}
		seen[inv.ID] = struct{}{}
	}
	return nil
}

// emptyResult is the outcome of a pass with nothing to match.
func emptyResult(strategy string, invoices []common.Invoice) *Result {
	_, groups := audit.FindDuplicates(invoices)
	if groups == nil {
		groups = []audit.Group{}
	}
	return &Result{
		Strategy:     strategy,
		Transactions: []common.Transaction{},
		Duplicates:   groups,
	}
}

func (s *ReconcileService) persist(ctx context.Context, res *Result, invoices []common.Invoice, storeInvoices bool) (uuid.UUID, error) {
	if storeInvoices && len(invoices) > 0 {
		if _, err := s.repo.UpsertInvoices(ctx, invoices); err != nil {
			return uuid.Nil, fmt.Errorf("failed to store invoices: %w", err)
		}
	}

	run := &repository.Run{
		Strategy:          res.Strategy,
		Total:             res.Summary.Total,
		Matched:           res.Summary.Matched,
		Unmatched:         res.Summary.Unmatched,
		AmountMismatch:    res.Summary.AmountMismatch,
		DuplicateInvoice:  res.Summary.DuplicateInvoice,
		EmbeddingFailures: res.Summary.EmbeddingFailures,
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		return uuid.Nil, fmt.Errorf("failed to record run: %w", err)
	}

	var links []repository.Reconciled
	for _, tx := range res.Transactions {
		if !tx.Matched() {
			continue
		}
		links = append(links, repository.Reconciled{
			InvoiceID:     tx.MatchedInvoiceID,
			TransactionID: tx.ID,
			Confidence:    tx.MatchConfidence,
			Flags:         tx.AuditFlags,
		})
	}
	if len(links) > 0 {
		if err := s.repo.MarkInvoicesReconciled(ctx, run.ID, links); err != nil {
			return uuid.Nil, fmt.Errorf("failed to mark invoices reconciled: %w", err)
		}
	}
	return run.ID, nil
}

// summarize counts outcomes. Every text that came back without a vector
// counts as an embedding failure, blank texts included.
func summarize(txs []common.Transaction, vectors [][]float32) Summary {
	sum := Summary{Total: len(txs)}
	for _, tx := range txs {
		if !tx.Matched() {
			sum.Unmatched++
			continue
		}
		sum.Matched++
		if tx.HasFlag(common.FlagAmountMismatch) {
			sum.AmountMismatch++
		}
		if tx.HasFlag(common.FlagDuplicateInvoice) {
			sum.DuplicateInvoice++
		}
	}
	for _, v := range vectors {
		if len(v) == 0 {
			sum.EmbeddingFailures++
		}
	}
	return sum
}
