package intent

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "intents.db"))
	require.NoError(t, err)
	return j
}

func TestJournalTwoPhase(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()

	rec, err := j.Begin(ctx, SideBuy, "MintAAA", decimal.NewFromFloat(0.05), decimal.RequireFromString("0.00000001"))
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, StatusAttempting, rec.Status)

	// Until settled the intent shows up as unresolved.
	open, err := j.Unresolved(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, rec.ID, open[0].ID)

	j.Settle(ctx, rec.ID, "sig123", decimal.RequireFromString("0.000000011"))

	open, err = j.Unresolved(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	recent, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, StatusSettled, recent[0].Status)
	assert.Equal(t, "sig123", recent[0].Signature)
	assert.Equal(t, "0.000000011", recent[0].FillPrice)
}

func TestJournalFailedIntentLeavesUnresolvedEmpty(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()

	rec, err := j.Begin(ctx, SideSell, "MintBBB", decimal.NewFromInt(1000), decimal.RequireFromString("0.00000002"))
	require.NoError(t, err)

	j.Fail(ctx, rec.ID, assert.AnError)

	open, err := j.Unresolved(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	recent, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, StatusFailed, recent[0].Status)
	assert.Contains(t, string(recent[0].Details), assert.AnError.Error())
}

func TestJournalUnresolvedOrderedOldestFirst(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()

	first, err := j.Begin(ctx, SideBuy, "MintC", decimal.NewFromFloat(0.01), decimal.RequireFromString("0.00000001"))
	require.NoError(t, err)
	second, err := j.Begin(ctx, SideBuy, "MintD", decimal.NewFromFloat(0.02), decimal.RequireFromString("0.00000001"))
	require.NoError(t, err)

	open, err := j.Unresolved(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, first.ID, open[0].ID)
	assert.Equal(t, second.ID, open[1].ID)
}
