package id

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	a := New(Import)
	b := New(Import)
	assert.NotEqual(t, a, b)
	assert.True(t, Is(a, Import))
	assert.False(t, Is(a, Transaction))
	assert.Regexp(t, `^imp_[0-9a-f-]{36}$`, a)
}

func TestFormatAndParse(t *testing.T) {
	u := uuid.MustParse("0b6f0f4e-2b0c-4d7e-9d55-7f1f8a0c3a11")
	tests := []struct {
		kind Kind
		want string
	}{
		{Account, "acct_0b6f0f4e-2b0c-4d7e-9d55-7f1f8a0c3a11"},
		{Transaction, "txn_0b6f0f4e-2b0c-4d7e-9d55-7f1f8a0c3a11"},
		{Import, "imp_0b6f0f4e-2b0c-4d7e-9d55-7f1f8a0c3a11"},
		{Reconciliation, "rec_0b6f0f4e-2b0c-4d7e-9d55-7f1f8a0c3a11"},
	}
	for _, tt := range tests {
		got := Format(tt.kind, u)
		assert.Equal(t, tt.want, got)

		k, parsed, err := Parse(got)
		require.NoError(t, err, "input: %s", got)
		assert.Equal(t, tt.kind, k)
		assert.Equal(t, u, parsed)
	}
}

func TestParse_Errors(t *testing.T) {
	badInputs := []string{
		"",
		"no-separator",
		"xyz_0b6f0f4e-2b0c-4d7e-9d55-7f1f8a0c3a11",
		"imp_not-a-uuid",
		"2025-01-001",
	}
	for _, input := range badInputs {
		_, _, err := Parse(input)
		assert.Error(t, err, "expected error for input: %s", input)
	}
}

func TestShort(t *testing.T) {
	assert.Equal(t, "rec_0b6f0f4e", Short("rec_0b6f0f4e-2b0c-4d7e-9d55-7f1f8a0c3a11"))
	assert.Equal(t, "checking", Short("checking"))
}
