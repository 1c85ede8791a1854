package accounts

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrec/internal/model"
)

func TestRoundTrip(t *testing.T) {
	accounts := []model.BankAccount{
		{
			ID:             "acct_checking",
			Name:           "Business Checking",
			CurrentBalance: decimal.RequireFromString("1520.25"),
			CreatedAt:      time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			ID:                    "acct_savings",
			Name:                  "Savings, high yield",
			CurrentBalance:        decimal.RequireFromString("-3"),
			LastReconciledBalance: decimal.RequireFromString("10.5"),
			LastReconciledDate:    time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	err := WriteAccounts(&buf, accounts)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(buf.String(), "account_id,name,current_balance,"))

	got, err := ReadAccounts(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "acct_checking", got[0].ID)
	assert.Equal(t, "Business Checking", got[0].Name)
	assert.Equal(t, "1520.25", got[0].CurrentBalance.StringFixed(2))
	assert.False(t, got[0].Reconciled())
	assert.True(t, got[0].CreatedAt.Equal(accounts[0].CreatedAt))

	assert.Equal(t, "Savings, high yield", got[1].Name)
	assert.Equal(t, "-3.00", got[1].CurrentBalance.StringFixed(2))
	assert.Equal(t, "10.50", got[1].LastReconciledBalance.StringFixed(2))
	assert.True(t, got[1].LastReconciledDate.Equal(accounts[1].LastReconciledDate))
	assert.True(t, got[1].CreatedAt.IsZero())
}

func TestMarshalAccount(t *testing.T) {
	row := MarshalAccount(model.BankAccount{ID: "acct_1", Name: "Checking", CurrentBalance: decimal.New(5, 0)})
	assert.Equal(t, []string{"acct_1", "Checking", "5.00", "0.00", "", ""}, row)
}

func TestUnmarshalAccount_Errors(t *testing.T) {
	tests := []struct {
		name   string
		record []string
	}{
		{"short", []string{"acct_1", "Checking"}},
		{"bad balance", []string{"acct_1", "Checking", "lots", "0", "", ""}},
		{"bad reconciled balance", []string{"acct_1", "Checking", "0", "x", "", ""}},
		{"bad date", []string{"acct_1", "Checking", "0", "0", "01/02/2024", ""}},
		{"bad created", []string{"acct_1", "Checking", "0", "0", "", "yesterday"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalAccount(tt.record)
			assert.Error(t, err)
		})
	}
}

func TestReadAccounts_Empty(t *testing.T) {
	got, err := ReadAccounts(strings.NewReader(""))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReadAccounts_RowNumberInError(t *testing.T) {
	in := "account_id,name,current_balance,last_reconciled_balance,last_reconciled_date,created_at\n" +
		"acct_1,Checking,oops,0,,\n"
	_, err := ReadAccounts(strings.NewReader(in))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}
