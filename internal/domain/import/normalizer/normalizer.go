// Package normalizer handles regional money and date parsing.
// Converts various bank statement formats into the canonical representation:
// ISO dates and signed decimal amounts (outflow negative, inflow positive).
package normalizer

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

const isoLayout = "2006-01-02"

var (
	isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// Calendar formats understood before falling back to positional parsing.
// Purely numeric day/month orders are left to the positional step so that
// DD/MM vs MM/DD can be disambiguated there.
var calendarFormats = []string{
	"2006/01/02",
	"2006/1/2",
	"2006.01.02",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"January 2 2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"2 January 2006",
	"2-Jan-2006",
	"02-Jan-2006",
	"02-Jan-06",
	"Mon, 02 Jan 2006",
	"Mon Jan 2 2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// NormalizeDate converts a raw date cell to YYYY-MM-DD.
// It returns "" when the value cannot be understood; callers keep the row.
func NormalizeDate(raw string) string {
	s := strings.Trim(raw, "\"' \t\r\n")
	if s == "" {
		return ""
	}
	if isoDatePattern.MatchString(s) {
		return s
	}

	for _, layout := range calendarFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(isoLayout)
		}
	}

	return positionalDate(s)
}

// positionalDate reads three separated parts as day, month, year.
func positionalDate(s string) string {
	// Drop a trailing time component ("02/01/2024 15:04").
	if i := strings.IndexAny(s, " T"); i > 0 {
		s = s[:i]
	}

	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == '/' || r == '.'
	})
	if len(parts) != 3 {
		return ""
	}

	// Year-first input is Y-M-D; reorder so the year comes last.
	if len(parts[0]) == 4 {
		parts[0], parts[2] = parts[2], parts[0]
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return ""
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return ""
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return ""
	}

	if month > 12 && day <= 12 {
		day, month = month, day
	}
	if year < 100 {
		year += 2000
	}

	iso := strconv.Itoa(year) + "-" + pad2(month) + "-" + pad2(day)
	t, err := time.Parse(isoLayout, iso)
	if err != nil {
		return ""
	}
	return t.Format(isoLayout)
}

func pad2(n int) string {
	if n >= 0 && n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// NormalizeAmount converts an amount cell into a signed decimal.
// Handles currency symbols, "(12.00)" negatives and both European (1.234,56)
// and American (1,234.56) separators. ok is false when no number is present.
func NormalizeAmount(raw string) (amount decimal.Decimal, ok bool) {
	s := strings.TrimSpace(raw)
	negative := false
	if len(s) >= 2 && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	// Clean the string: keep digits, separators and a leading minus
	var b strings.Builder
	seenNumber := false
	for _, r := range s {
		switch {
		case unicode.IsDigit(r) || r == '.' || r == ',':
			seenNumber = true
			b.WriteRune(r)
		case r == '-' && !seenNumber:
			negative = true
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return decimal.Zero, false
	}

	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")
	if lastComma >= 0 && lastComma > lastDot {
		// European: 1.234,56 -> 1234.56
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	} else {
		// American: 1,234.56 -> 1234.56
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	val, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		val = val.Abs().Neg()
	}
	return val, true
}

// CombineDebitCredit merges separate debit and credit cells into one signed amount.
// hasDebit/hasCredit say which columns exist in the file; a present but blank or
// unparseable cell counts as zero as long as the other side parsed.
// Debit = negative (money out), Credit = positive (money in).
func CombineDebitCredit(debitStr, creditStr string, hasDebit, hasCredit bool) (decimal.Decimal, bool) {
	debit, debitOK := decimal.Zero, false
	if hasDebit {
		debit, debitOK = NormalizeAmount(debitStr)
	}
	credit, creditOK := decimal.Zero, false
	if hasCredit {
		credit, creditOK = NormalizeAmount(creditStr)
	}

	switch {
	case hasDebit && hasCredit:
		if !debitOK && !creditOK {
			return decimal.Zero, false
		}
		return credit.Abs().Sub(debit.Abs()), true
	case hasDebit:
		return debit.Abs().Neg(), debitOK
	case hasCredit:
		return credit.Abs(), creditOK
	}
	return decimal.Zero, false
}

// CleanDescription normalizes merchant/description text
func CleanDescription(raw string) string {
	result := norm.NFKC.String(raw)
	result = strings.Trim(result, "\"")
	result = spacePattern.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}
