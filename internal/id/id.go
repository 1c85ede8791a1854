package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind is the record type encoded in an ID prefix.
type Kind string

const (
	Account        Kind = "acct"
	Transaction    Kind = "txn"
	Import         Kind = "imp"
	Reconciliation Kind = "rec"
)

var kinds = map[Kind]bool{
	Account:        true,
	Transaction:    true,
	Import:         true,
	Reconciliation: true,
}

// New returns a random ID like "imp_0b6f0f4e-2b0c-4d7e-9d55-7f1f8a0c3a11".
func New(k Kind) string {
	return Format(k, uuid.New())
}

// Format renders an ID from its kind and UUID.
func Format(k Kind, u uuid.UUID) string {
	return string(k) + "_" + u.String()
}

// Parse splits an ID into its kind and UUID.
func Parse(s string) (Kind, uuid.UUID, error) {
	prefix, rest, ok := strings.Cut(s, "_")
	if !ok {
		return "", uuid.Nil, fmt.Errorf("invalid ID format: %q", s)
	}
	k := Kind(prefix)
	if !kinds[k] {
		return "", uuid.Nil, fmt.Errorf("unknown ID kind %q in %q", prefix, s)
	}
	u, err := uuid.Parse(rest)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("invalid UUID in ID %q: %w", s, err)
	}
	return k, u, nil
}

// Is reports whether s is a well-formed ID of kind k.
func Is(s string, k Kind) bool {
	got, _, err := Parse(s)
	return err == nil && got == k
}

// Short returns the kind prefix and the first UUID group, e.g. "rec_0b6f0f4e", for display.
func Short(s string) string {
	k, u, err := Parse(s)
	if err != nil {
		return s
	}
	return string(k) + "_" + u.String()[:8]
}
