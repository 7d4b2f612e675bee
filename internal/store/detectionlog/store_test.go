package detectionlog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndRecent(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "detections.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	s.Append(ctx, Record{
		Signature:    "sig1",
		Mint:         "MintA",
		Name:         "Token A",
		Symbol:       "TKA",
		Curve:        "CurveA",
		PriceSOL:     "0.00000001",
		LiquiditySOL: "5",
		Accepted:     true,
		BuySignature: "buy1",
	})
	s.Append(ctx, Record{
		Signature: "sig2",
		Mint:      "MintB",
		Curve:     "CurveB",
		Accepted:  false,
		Reason:    "price above limit",
	})

	recent, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	// Newest first.
	assert.Equal(t, "sig2", recent[0].Signature)
	assert.False(t, recent[0].Accepted)
	assert.Equal(t, "price above limit", recent[0].Reason)
	assert.Equal(t, "sig1", recent[1].Signature)
	assert.True(t, recent[1].Accepted)
	assert.Equal(t, "buy1", recent[1].BuySignature)
	assert.Equal(t, "Token A", recent[1].Name)
	assert.Equal(t, "TKA", recent[1].Symbol)
	assert.NotZero(t, recent[1].Timestamp)
}

func TestRecentHonorsLimit(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "detections.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.Append(ctx, Record{Signature: "sig", Mint: "Mint", Accepted: false, Reason: "x"})
	}

	recent, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, recent, 3)
}
