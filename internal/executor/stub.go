package executor

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MSB0095/sol-beast-sub004/internal/logger"
)

// StubOptions tunes the simulated backend.
type StubOptions struct {
	// FailureRate in [0,1) makes a fraction of submissions fail, for
	// exercising the retry and abandon paths.
	FailureRate float64
	// Latency delays each fill; zero settles immediately.
	Latency time.Duration
}

// Stub simulates fills without touching the chain. Buys convert the SOL
// amount to tokens at the reference price; sells echo the reference price
// back. Signatures are synthetic but unique.
type Stub struct {
	opts StubOptions

	mu  sync.Mutex
	rng *rand.Rand
	seq int64
}

func NewStub(opts StubOptions) *Stub {
	return &Stub{
		opts: opts,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Stub) fill(ctx context.Context, side, mint string) (string, error) {
	if s.opts.Latency > 0 {
		t := time.NewTimer(s.opts.Latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opts.FailureRate > 0 && s.rng.Float64() < s.opts.FailureRate {
		return "", fmt.Errorf("simulated %s failure for %s", side, mint)
	}
	s.seq++
	return fmt.Sprintf("stub-%s-%d-%d", side, time.Now().UnixNano(), s.seq), nil
}

func (s *Stub) Buy(ctx context.Context, mint string, amountSOL float64, price decimal.Decimal) (Fill, error) {
	sig, err := s.fill(ctx, "buy", mint)
	if err != nil {
		return Fill{}, err
	}
	if price.IsZero() {
		return Fill{}, fmt.Errorf("stub buy %s: zero reference price", mint)
	}
	tokens := decimal.NewFromFloat(amountSOL).Div(price)
	logger.Infof("[EXEC] stub buy %s: %.4f SOL -> %s tokens @ %s", mint, amountSOL, tokens.StringFixed(2), price)
	return Fill{
		Signature:   sig,
		Price:       price,
		TokenAmount: tokens,
		ExecutedAt:  time.Now(),
	}, nil
}

func (s *Stub) Sell(ctx context.Context, mint string, tokenAmount decimal.Decimal, price decimal.Decimal) (Fill, error) {
	sig, err := s.fill(ctx, "sell", mint)
	if err != nil {
		return Fill{}, err
	}
	logger.Infof("[EXEC] stub sell %s: %s tokens @ %s", mint, tokenAmount.StringFixed(2), price)
	return Fill{
		Signature:   sig,
		Price:       price,
		TokenAmount: tokenAmount,
		ExecutedAt:  time.Now(),
	}, nil
}
