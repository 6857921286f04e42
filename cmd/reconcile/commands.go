package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/FACorreiaa/echo-reconcile/internal/domain/common"
	importservice "github.com/FACorreiaa/echo-reconcile/internal/domain/import/service"
	"github.com/FACorreiaa/echo-reconcile/internal/domain/reconcile/audit"
	"github.com/FACorreiaa/echo-reconcile/internal/domain/reconcile/embedding"
	"github.com/FACorreiaa/echo-reconcile/internal/domain/reconcile/matcher"
	"github.com/FACorreiaa/echo-reconcile/internal/domain/reconcile/service"
	"github.com/FACorreiaa/echo-reconcile/pkg/config"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// newEmbedder is replaced in tests.
var newEmbedder = func(ctx context.Context, apiKey, model string) (embedding.Embedder, error) {
	return embedding.NewGeminiEmbedder(ctx, apiKey, model)
}

func newParseCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <statement.csv>",
		Short: "Parse a bank statement export into canonical transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseStatement(cmd.Context(), opts, cmd.ErrOrStderr(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.format == formatTable {
				if err := writeTransactions(out, parsed.Transactions); err != nil {
					return err
				}
				for _, s := range parsed.Skipped {
					fmt.Fprintf(out, "skipped line %d: %s\n", s.Line, s.Reason)
				}
				return nil
			}
			return writeJSON(out, parsed)
		},
	}
}

func newDuplicatesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicates <invoices.yaml>",
		Short: "List invoices that look like duplicate submissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			invoices, err := loadInvoices(args[0])
			if err != nil {
				return err
			}

			_, groups := audit.FindDuplicates(invoices)
			if groups == nil {
				groups = []audit.Group{}
			}

			out := cmd.OutOrStdout()
			if opts.format == formatTable {
				if len(groups) == 0 {
					fmt.Fprintln(out, "no duplicate invoices")
					return nil
				}
				for _, g := range groups {
					fmt.Fprintf(out, "%s\t%s\n", g.Signature, strings.Join(g.InvoiceIDs, ", "))
				}
				return nil
			}
			return writeJSON(out, groups)
		},
	}
}

func newMatchCommand(opts *rootOptions) *cobra.Command {
	var (
		invoicesPath string
		strategy     string
	)

	cmd := &cobra.Command{
		Use:   "match <statement.csv>",
		Short: "Reconcile a bank statement against invoices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := opts.logger(cmd.ErrOrStderr())

			cfg, err := config.LoadFile(opts.configFile())
			if err != nil {
				return err
			}
			if strategy != "" {
				cfg.Matching.Strategy = strategy
			}
			matchStrategy, err := matcher.New(cfg.Matching.Strategy, cfg.Matching.Tolerances())
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Embedding.APIKey) == "" {
				return fmt.Errorf("GEMINI_API_KEY is not set: %w", embedding.ErrMissingCredentials)
			}

			parsed, err := parseStatement(ctx, opts, cmd.ErrOrStderr(), args[0])
			if err != nil {
				return err
			}
			invoices, err := loadInvoices(invoicesPath)
			if err != nil {
				return err
			}

			embedder, err := newEmbedder(ctx, cfg.Embedding.APIKey, cfg.Embedding.Model)
			if err != nil {
				return err
			}
			pipeline, err := embedding.NewPipeline(embedder, cfg.Embedding.Pipeline(), logger)
			if err != nil {
				return err
			}

			svc := service.NewReconcileService(pipeline, matchStrategy, nil, logger)
			res, err := svc.Reconcile(ctx, parsed.Transactions, invoices)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.format == formatTable {
				if err := writeTransactions(out, res.Transactions); err != nil {
					return err
				}
				s := res.Summary
				fmt.Fprintf(out, "\nmatched %d/%d, amount mismatches %d, duplicate invoices %d, embedding failures %d\n",
					s.Matched, s.Total, s.AmountMismatch, s.DuplicateInvoice, s.EmbeddingFailures)
				return nil
			}
			return writeJSON(out, res)
		},
	}

	cmd.Flags().StringVar(&invoicesPath, "invoices", "", "invoice file, YAML or JSON (required)")
	_ = cmd.MarkFlagRequired("invoices")
	cmd.Flags().StringVar(&strategy, "strategy", "", "matching strategy: greedy or optimal (overrides config)")

	return cmd
}

func parseStatement(ctx context.Context, opts *rootOptions, logOut io.Writer, path string) (*importservice.ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading statement: %w", err)
	}
	svc := importservice.NewImportService(nil, opts.logger(logOut))
	return svc.ParseStatement(ctx, data)
}

// loadInvoices reads a list of invoices, either bare or under an "invoices"
// key. JSON files parse the same way.
func loadInvoices(path string) ([]common.Invoice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading invoices: %w", err)
	}

	var doc struct {
		Invoices []common.Invoice `yaml:"invoices"`
	}
	if err := yaml.Unmarshal(data, &doc); err == nil && doc.Invoices != nil {
		return doc.Invoices, nil
	}

	var list []common.Invoice
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decoding invoices: %w", err)
	}
	return list, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTransactions(w io.Writer, txs []common.Transaction) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tDESCRIPTION\tAMOUNT\tINVOICE\tCONFIDENCE\tFLAGS")
	for _, tx := range txs {
		confidence := ""
		if tx.Matched() {
			confidence = fmt.Sprintf("%.3f", tx.MatchConfidence)
		}
		flags := make([]string, len(tx.AuditFlags))
		for i, f := range tx.AuditFlags {
			flags[i] = string(f)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			tx.Date, tx.Description, tx.Amount.StringFixed(2), tx.MatchedInvoiceID, confidence, strings.Join(flags, ","))
	}
	return tw.Flush()
}
