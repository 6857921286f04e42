package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	importservice "github.com/FACorreiaa/echo-reconcile/internal/domain/import/service"
	"github.com/FACorreiaa/echo-reconcile/internal/domain/reconcile/embedding"
	"github.com/FACorreiaa/echo-reconcile/internal/domain/reconcile/service"
)

type stubProvider struct {
	vectors map[string][]float32
	err     error
}

func (s stubProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = s.vectors[text]
		if out[i] == nil {
			out[i] = []float32{}
		}
	}
	return out, nil
}

func newServer(t *testing.T, provider embedding.Provider) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewReconcileService(provider, nil, nil, logger)
	h := NewReconcileHandler(svc, importservice.NewImportService(nil, logger), logger)

	mux := http.NewServeMux()
	h.Register(mux, func(_ string, next http.Handler) http.Handler { return next })
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

var acme = stubProvider{vectors: map[string][]float32{
	"Acme Consulting":     {1, 0},
	"ACME CONSULTING JAN": {1, 0},
}}

const invoicesJSON = `[{"id":"i1","vendor_name":"Acme","description":"Consulting","invoice_date":"2024-01-01","total_amount":"100"}]`

func TestReconcile_FromStatementCSV(t *testing.T) {
	srv := newServer(t, acme)

	body := fmt.Sprintf(`{"statement_csv":%q,"invoices":%s}`,
		"Date,Description,Amount\n2024-01-05,ACME CONSULTING JAN,-100.00\n2024-01-06,COFFEE,-3.50\n2024-01-07,Broken,abc\n",
		invoicesJSON)
	code, out := postJSON(t, srv.URL+"/v1/reconciliations", body)
	require.Equal(t, http.StatusOK, code, "body: %v", out)

	txs, ok := out["transactions"].([]any)
	require.True(t, ok)
	require.Len(t, txs, 2)
	first := txs[0].(map[string]any)
	assert.Equal(t, "i1", first["matched_invoice_id"])

	summary := out["summary"].(map[string]any)
	assert.EqualValues(t, 1, summary["matched"])
	assert.EqualValues(t, 1, summary["unmatched"])
	assert.EqualValues(t, 1, out["skipped_rows"])
	assert.Equal(t, "greedy", out["strategy"])
}

func TestReconcile_FromTransactions(t *testing.T) {
	srv := newServer(t, acme)

	body := `{"transactions":[{"id":"t1","date":"2024-01-05","description":"ACME CONSULTING JAN","amount":"-100"}],"invoices":` + invoicesJSON + `}`
	code, out := postJSON(t, srv.URL+"/v1/reconciliations", body)
	require.Equal(t, http.StatusOK, code)

	txs := out["transactions"].([]any)
	assert.Equal(t, "i1", txs[0].(map[string]any)["matched_invoice_id"])
}

func TestReconcile_Errors(t *testing.T) {
	tests := []struct {
		name     string
		provider embedding.Provider
		body     string
		want     int
	}{
		{"invalid json", acme, `{`, http.StatusBadRequest},
		{"no transactions", acme, `{"invoices":[]}`, http.StatusBadRequest},
		{"statement without amount column", acme, `{"statement_csv":"Date,Description\n2024-01-01,Coffee\n","invoices":[]}`, http.StatusBadRequest},
		{
			"repeated invoice id",
			acme,
			`{"transactions":[{"id":"t1","description":"x","amount":"-1"}],"invoices":[{"id":"i1","vendor_name":"Acme","total_amount":"1"},{"id":"i1","vendor_name":"Acme","total_amount":"2"}]}`,
			http.StatusBadRequest,
		},
		{
			"invoice without id",
			acme,
			`{"transactions":[{"id":"t1","description":"x","amount":"-1"}],"invoices":[{"vendor_name":"Acme","total_amount":"1"}]}`,
			http.StatusBadRequest,
		},
		{"open invoices without store", acme, `{"transactions":[{"id":"t1","description":"x","amount":"-1"}]}`, http.StatusBadRequest},
		{"missing credentials", nil, `{"transactions":[{"id":"t1","description":"x","amount":"-1"}],"invoices":[]}`, http.StatusServiceUnavailable},
		{
			"provider unavailable",
			stubProvider{err: fmt.Errorf("denied: %w", embedding.ErrProviderUnavailable)},
			`{"transactions":[{"id":"t1","description":"x","amount":"-1"}],"invoices":[]}`,
			http.StatusServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.provider)
			code, out := postJSON(t, srv.URL+"/v1/reconciliations", tt.body)
			assert.Equal(t, tt.want, code)
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestGetRun(t *testing.T) {
	srv := newServer(t, acme)

	resp, err := http.Get(srv.URL + "/v1/reconciliations/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/reconciliations/7f1c9a52-2c53-4c8b-9a7e-0d1f5d7a3b10")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
