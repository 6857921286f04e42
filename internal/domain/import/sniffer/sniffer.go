// Package sniffer provides automatic detection of CSV/TSV file formats.
// It picks the delimiter, locates the header row and the date, description and
// amount columns, and generates fingerprints for bank recognition.
package sniffer

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"unicode"

	"github.com/FACorreiaa/echo-reconcile/internal/domain/import/normalizer"
)

// Candidate delimiters in tie-break order.
var candidateDelimiters = []rune{',', ';', '\t', '|'}

const (
	headerScanRows = 5
	sampleRowCount = 5
)

// Header keywords, matched against the lower-cased, trimmed cell.
var (
	dateKeywords   = keywordSet("date", "txn_date", "transaction date", "value date", "booking date", "time")
	descKeywords   = keywordSet("description", "desc", "narration", "memo", "remarks", "particulars", "details", "reference")
	amountKeywords = keywordSet("amount", "amt", "value", "inr", "usd", "eur", "total")
	debitKeywords  = keywordSet("debit", "dr", "withdrawal", "paid", "out")
	creditKeywords = keywordSet("credit", "cr", "deposit", "received", "in")
)

var (
	ErrEmptyFile      = errors.New("file is empty")
	ErrNoAmountColumn = errors.New("could not find an amount, debit or credit column")
)

// Layout holds detected column indices. Absent columns are -1.
type Layout struct {
	DateCol   int `json:"date_col"`
	DescCol   int `json:"desc_col"`
	AmountCol int `json:"amount_col"`
	DebitCol  int `json:"debit_col"`
	CreditCol int `json:"credit_col"`
	HeaderRow int `json:"header_row"` // -1 when the file has no recognizable header
}

// IsDoubleEntry reports separate debit and credit columns.
func (l Layout) IsDoubleEntry() bool {
	return l.DebitCol >= 0 && l.CreditCol >= 0
}

// HasAmount reports whether any amount-bearing column was found.
func (l Layout) HasAmount() bool {
	return l.AmountCol >= 0 || l.DebitCol >= 0 || l.CreditCol >= 0
}

// Claims reports whether col is used by the date, amount, debit or credit role.
func (l Layout) Claims(col int) bool {
	return col == l.DateCol || col == l.AmountCol || col == l.DebitCol || col == l.CreditCol
}

func (l Layout) complete() bool {
	return l.DateCol >= 0 && (l.AmountCol >= 0 || l.IsDoubleEntry())
}

func (l Layout) claimsAny(col int) bool {
	return l.Claims(col) || col == l.DescCol
}

func emptyLayout() Layout {
	return Layout{DateCol: -1, DescCol: -1, AmountCol: -1, DebitCol: -1, CreditCol: -1, HeaderRow: -1}
}

// FileConfig holds the detected configuration for a CSV/TSV file
type FileConfig struct {
	Delimiter   rune       // The field delimiter (',', ';', '\t', '|')
	Layout      Layout     // Detected columns and header row
	Headers     []string   // Header cells, nil when there is no header
	Fingerprint string     // SHA256 hash of normalized headers
	Rows        [][]string // Every non-blank line, split
	SampleRows  [][]string // First few data rows for preview
}

// DataRows returns the rows after the header (all rows when there is none).
func (c *FileConfig) DataRows() [][]string {
	return c.Rows[c.Layout.HeaderRow+1:]
}

// DetectConfig analyzes a CSV/TSV file and returns its configuration.
// A file without any amount-bearing column yields ErrNoAmountColumn together
// with the partial configuration.
func DetectConfig(data []byte) (*FileConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	lines := SplitLines(string(data))
	if len(lines) == 0 {
		return nil, ErrEmptyFile
	}

	delimiter := DetectDelimiter(lines[0])
	rows := make([][]string, len(lines))
	for i, line := range lines {
		rows[i] = SplitLine(line, delimiter)
	}

	layout := DetectLayout(rows)
	config := &FileConfig{
		Delimiter: delimiter,
		Layout:    layout,
		Rows:      rows,
	}
	if layout.HeaderRow >= 0 {
		config.Headers = rows[layout.HeaderRow]
		config.Fingerprint = generateFingerprint(config.Headers)
	}

	samples := config.DataRows()
	if len(samples) > sampleRowCount {
		samples = samples[:sampleRowCount]
	}
	config.SampleRows = samples

	if !layout.HasAmount() {
		return config, ErrNoAmountColumn
	}
	return config, nil
}

// DetectDelimiter picks the candidate that yields the most fields on line.
// Ties go to the earlier candidate.
func DetectDelimiter(line string) rune {
	best, bestCount := candidateDelimiters[0], 0
	for _, d := range candidateDelimiters {
		if n := len(SplitLine(line, d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// DetectLayout locates the header row and the role of each column.
// Keywords are searched in the first rows; whatever they miss is filled by
// sniffing the first data row through fallbackChain.
func DetectLayout(rows [][]string) Layout {
	layout := emptyLayout()
	presumptiveHeader := -1

	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		if matchHeaderKeywords(&layout, rows[i]) {
			presumptiveHeader = i
		}
		if layout.complete() {
			layout.HeaderRow = i
			return layout
		}
	}
	layout.HeaderRow = presumptiveHeader

	if layout.DateCol >= 0 && (layout.AmountCol >= 0 || layout.DebitCol >= 0) {
		return layout
	}

	sampleIdx := presumptiveHeader + 1
	if sampleIdx >= len(rows) {
		return layout
	}
	sample := rows[sampleIdx]
	for _, probe := range fallbackChain {
		if !probe.wanted(layout) {
			continue
		}
		for col, cell := range sample {
			if layout.claimsAny(col) {
				continue
			}
			if probe.looksLike(cell) {
				probe.assign(&layout, col)
				break
			}
		}
	}
	return layout
}

// matchHeaderKeywords assigns roles from one row; earlier assignments stick.
func matchHeaderKeywords(layout *Layout, row []string) bool {
	matched := false
	for col, cell := range row {
		h := strings.ToLower(strings.TrimSpace(cell))
		if h == "" {
			continue
		}
		switch {
		case dateKeywords[h]:
			setOnce(&layout.DateCol, col)
		case descKeywords[h]:
			setOnce(&layout.DescCol, col)
		case amountKeywords[h]:
			setOnce(&layout.AmountCol, col)
		case debitKeywords[h]:
			setOnce(&layout.DebitCol, col)
		case creditKeywords[h]:
			setOnce(&layout.CreditCol, col)
		default:
			continue
		}
		matched = true
	}
	return matched
}

func setOnce(dst *int, col int) {
	if *dst < 0 {
		*dst = col
	}
}

// columnProbe sniffs one column role from cell contents.
type columnProbe struct {
	looksLike func(string) bool
	wanted    func(Layout) bool
	assign    func(*Layout, int)
}

// fallbackChain runs in order: date first so the amount probe skips that column.
var fallbackChain = []columnProbe{
	{
		looksLike: normalizer.LooksLikeDate,
		wanted:    func(l Layout) bool { return l.DateCol < 0 },
		assign:    func(l *Layout, col int) { l.DateCol = col },
	},
	{
		looksLike: normalizer.LooksLikeAmount,
		wanted:    func(l Layout) bool { return l.AmountCol < 0 && l.DebitCol < 0 },
		assign:    func(l *Layout, col int) { l.AmountCol = col },
	},
}

func keywordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// generateFingerprint creates a unique hash from header names
func generateFingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}

	joined := strings.Join(normalized, "|")
	hash := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(hash[:])
}
