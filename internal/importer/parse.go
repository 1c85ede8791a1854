package importer

// ParseResult is the pure, I/O-free view of one CSV upload.
type ParseResult struct {
	Headers         []string      `json:"headers"`
	Rows            []RawRow      `json:"-"`
	DetectedMapping ColumnMapping `json:"detectedMapping"`
	Confidence      Confidence    `json:"confidence"`
}

// ParseCSV tokenizes text and infers its column mapping. The same input
// always yields the same result.
func ParseCSV(text string, opts DetectOptions) ParseResult {
	headers, rows := Tokenize(text)
	det := DetectMapping(headers, rows, opts)
	return ParseResult{
		Headers:         headers,
		Rows:            rows,
		DetectedMapping: det.Mapping,
		Confidence:      det.Confidence,
	}
}

// Sample returns up to n leading rows.
func (r ParseResult) Sample(n int) []RawRow {
	if len(r.Rows) < n {
		n = len(r.Rows)
	}
	return r.Rows[:n]
}
