package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MSB0095/sol-beast-sub004/internal/config"
	"github.com/MSB0095/sol-beast-sub004/internal/executor/intent"
)

// Fill is the settled result of a buy or sell.
type Fill struct {
	Signature string
	// Price is the per-token execution price in SOL.
	Price decimal.Decimal
	// TokenAmount is the token quantity bought or sold.
	TokenAmount decimal.Decimal
	ExecutedAt  time.Time
}

// Executor submits trades. Implementations must be safe for concurrent use;
// the detector buys while the position monitor sells.
type Executor interface {
	// Buy spends amountSOL on the asset's curve at the given reference price.
	Buy(ctx context.Context, mint string, amountSOL float64, price decimal.Decimal) (Fill, error)
	// Sell liquidates tokenAmount of the asset at the given reference price.
	Sell(ctx context.Context, mint string, tokenAmount decimal.Decimal, price decimal.Decimal) (Fill, error)
}

// New builds the configured backend wrapped in the intent journal, so every
// submission is recorded before it goes out and settled after.
func New(cfg config.ExecutorConfig, journal *intent.Journal) (Executor, error) {
	var backend Executor
	switch cfg.Mode {
	case "", "stub":
		backend = NewStub(StubOptions{})
	default:
		return nil, fmt.Errorf("unknown executor mode %q", cfg.Mode)
	}
	if journal == nil {
		return backend, nil
	}
	return &journaled{backend: backend, journal: journal}, nil
}

// journaled wraps a backend with two-phase intent recording: the intent row
// exists before submission, so a crash mid-trade leaves an attempting row to
// reconcile at startup instead of a silent unknown.
type journaled struct {
	backend Executor
	journal *intent.Journal
}

func (j *journaled) Buy(ctx context.Context, mint string, amountSOL float64, price decimal.Decimal) (Fill, error) {
	rec, err := j.journal.Begin(ctx, intent.SideBuy, mint, decimal.NewFromFloat(amountSOL), price)
	if err != nil {
		return Fill{}, fmt.Errorf("record buy intent: %w", err)
	}
	fill, err := j.backend.Buy(ctx, mint, amountSOL, price)
	if err != nil {
		j.journal.Fail(ctx, rec.ID, err)
		return Fill{}, err
	}
	j.journal.Settle(ctx, rec.ID, fill.Signature, fill.Price)
	return fill, nil
}

func (j *journaled) Sell(ctx context.Context, mint string, tokenAmount decimal.Decimal, price decimal.Decimal) (Fill, error) {
	rec, err := j.journal.Begin(ctx, intent.SideSell, mint, tokenAmount, price)
	if err != nil {
		return Fill{}, fmt.Errorf("record sell intent: %w", err)
	}
	fill, err := j.backend.Sell(ctx, mint, tokenAmount, price)
	if err != nil {
		j.journal.Fail(ctx, rec.ID, err)
		return Fill{}, err
	}
	j.journal.Settle(ctx, rec.ID, fill.Signature, fill.Price)
	return fill, nil
}
