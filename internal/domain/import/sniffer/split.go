package sniffer

import (
	"strings"
)

// SplitLine splits one raw line into trimmed fields.
// Double quotes toggle a quoted region in which the delimiter is literal text;
// a doubled quote inside a quoted region yields one literal quote. Unbalanced
// quotes are tolerated: whatever was accumulated is returned.
func SplitLine(line string, delimiter rune) []string {
	runes := []rune(strings.TrimRight(line, "\r\n"))

	var (
		fields   []string
		field    strings.Builder
		inQuotes bool
	)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				field.WriteRune('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case r == delimiter && !inQuotes:
			fields = append(fields, strings.TrimSpace(field.String()))
			field.Reset()
		default:
			field.WriteRune(r)
		}
	}
	return append(fields, strings.TrimSpace(field.String()))
}

// SplitLines breaks text on any line ending (\r\n, \r, \n) and drops blank lines.
func SplitLines(text string) []string {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
