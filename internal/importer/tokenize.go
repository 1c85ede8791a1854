package importer

import "strings"

// RawRow maps header name to raw cell text for one data line.
type RawRow map[string]string

// Tokenize splits CSV text into a header list and data rows.
//
// Lines are split before quotes are considered, so a quoted field cannot
// span lines. Malformed input never errors; at worst columns misalign.
func Tokenize(text string) ([]string, []RawRow) {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil, nil
	}

	headers := SplitLine(lines[0])

	var rows []RawRow
	for _, line := range lines[1:] {
		fields := SplitLine(line)
		if len(fields) == 1 && fields[0] == "" {
			continue
		}
		row := make(RawRow, len(headers))
		for i, h := range headers {
			if i < len(fields) {
				row[h] = fields[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return headers, rows
}

// SplitLine splits one CSV line on commas outside double quotes.
// A doubled quote inside a quoted field is a literal quote. Fields are trimmed.
func SplitLine(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"' && inQuotes && i+1 < len(line) && line[i+1] == '"':
			cur.WriteByte('"')
			i++
		case c == '"':
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(fields, strings.TrimSpace(cur.String()))
}
