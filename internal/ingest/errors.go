package ingest

import (
	"fmt"

	"github.com/cleared-dev/bankrec/internal/importer"
)

// ValidationError reports a request the caller must correct.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NeedsMappingError is returned when no usable column mapping was detected
// and none was supplied. It carries enough context for the caller to choose one.
type NeedsMappingError struct {
	Headers         []string
	DetectedMapping importer.ColumnMapping
	Confidence      importer.Confidence
	Sample          []importer.RawRow
}

func (e *NeedsMappingError) Error() string {
	return "no usable column mapping: date, description, and amount or debit columns are required"
}
