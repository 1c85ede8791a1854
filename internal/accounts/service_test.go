package accounts

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrec/internal/config"
	"github.com/cleared-dev/bankrec/internal/id"
	"github.com/cleared-dev/bankrec/internal/store"
	"github.com/cleared-dev/bankrec/internal/store/memstore"
)

func newService() *Service {
	return NewService(memstore.New(), zerolog.Nop())
}

func TestCreate(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	acct, err := svc.Create(ctx, CreateRequest{Name: "  Business Checking ", OpeningBalance: decimal.RequireFromString("1000.005")})
	require.NoError(t, err)
	assert.True(t, id.Is(acct.ID, id.Account), acct.ID)
	assert.Equal(t, "Business Checking", acct.Name)
	assert.Equal(t, "1000.01", acct.CurrentBalance.StringFixed(2))
	assert.True(t, acct.CurrentBalance.Equal(acct.LastReconciledBalance))
	assert.False(t, acct.Reconciled())

	got, err := svc.Get(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, acct.Name, got.Name)
}

func TestCreate_Errors(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{Name: " "})
	assert.Error(t, err)

	_, err = svc.Create(ctx, CreateRequest{ID: "my account", Name: "Checking"})
	assert.Error(t, err)

	_, err = svc.Create(ctx, CreateRequest{ID: "checking", Name: "Checking"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateRequest{ID: "checking", Name: "Checking again"})
	assert.Error(t, err, "duplicate id")
}

func TestGet_NotFound(t *testing.T) {
	_, err := newService().Get(context.Background(), "acct_missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestSeed(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	configured := []config.BankAccount{
		{ID: "checking", Name: "Checking", OpeningBalance: decimal.New(250, 0)},
		{Name: "Savings"},
	}

	created, err := svc.Seed(ctx, configured)
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, "checking", created[0].ID)
	assert.Equal(t, "250.00", created[0].CurrentBalance.StringFixed(2))

	// Accounts with a fixed ID are seeded once.
	created, err = svc.Seed(ctx, configured[:1])
	require.NoError(t, err)
	assert.Empty(t, created)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestLoad(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateRequest{ID: "checking", Name: "Checking"})
	require.NoError(t, err)

	in := strings.Join([]string{
		"account_id,name,current_balance,last_reconciled_balance,last_reconciled_date,created_at",
		"checking,Checking,99.00,0.00,,",
		"card,Credit Card,-40.10,0.00,,",
	}, "\n")
	created, err := svc.Load(ctx, strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "card", created[0].ID)
	assert.Equal(t, "-40.10", created[0].CurrentBalance.StringFixed(2))
}

func TestSnapshot(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateRequest{ID: "checking", Name: "Checking", OpeningBalance: decimal.New(12, 0)})
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, svc.Snapshot(ctx, dir))

	data, err := os.ReadFile(filepath.Join(dir, SnapshotFile))
	require.NoError(t, err)
	got, err := ReadAccounts(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "checking", got[0].ID)
	assert.Equal(t, "12.00", got[0].CurrentBalance.StringFixed(2))
}
