package position

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MSB0095/sol-beast-sub004/internal/cache"
	"github.com/MSB0095/sol-beast-sub004/internal/config"
	"github.com/MSB0095/sol-beast-sub004/internal/curve"
	"github.com/MSB0095/sol-beast-sub004/internal/executor"
	"github.com/MSB0095/sol-beast-sub004/internal/logger"
	"github.com/MSB0095/sol-beast-sub004/internal/notifier"
)

// AccountFetcher fetches raw curve account data, racing all RPC endpoints.
type AccountFetcher interface {
	GetAccountInfo(ctx context.Context, address string) ([]byte, error)
}

// Tracker manages streaming account subscriptions for curve addresses.
type Tracker interface {
	Track(account string)
	Untrack(account string)
}

const closedHistory = 200

// Manager owns the open-position set. A monitor tick re-prices every open
// position (price cache first, RPC race on miss) and walks the exit state
// machine. At most one exit evaluation runs per position at a time.
type Manager struct {
	fetcher AccountFetcher
	exec    executor.Executor
	tracker Tracker
	notify  notifier.TextNotifier
	prices  *cache.Cache[string, decimal.Decimal]

	strategyMu sync.RWMutex
	strategy   config.StrategyConfig

	mu       sync.Mutex
	open     map[string]*Position
	inflight map[string]bool
	closed   []Snapshot

	now func() time.Time
}

func NewManager(strategy config.StrategyConfig, prices *cache.Cache[string, decimal.Decimal],
	fetcher AccountFetcher, exec executor.Executor, tracker Tracker, notify notifier.TextNotifier) *Manager {
	if notify == nil {
		notify = notifier.Nop{}
	}
	return &Manager{
		fetcher:  fetcher,
		exec:     exec,
		tracker:  tracker,
		notify:   notify,
		prices:   prices,
		strategy: strategy,
		open:     make(map[string]*Position),
		inflight: make(map[string]bool),
		now:      time.Now,
	}
}

// Open registers a freshly bought position and subscribes its curve account.
func (m *Manager) Open(pos *Position) error {
	if pos.Mint == "" || pos.Curve == "" {
		return fmt.Errorf("position missing mint or curve address")
	}
	pos.State = StateOpen
	if pos.OpenedAt.IsZero() {
		pos.OpenedAt = m.now()
	}
	m.mu.Lock()
	if _, exists := m.open[pos.Mint]; exists {
		m.mu.Unlock()
		return fmt.Errorf("position for %s already open", pos.Mint)
	}
	m.open[pos.Mint] = pos
	count := len(m.open)
	m.mu.Unlock()

	m.tracker.Track(pos.Curve)
	logger.Infof("[POSITION] opened %s entry=%s qty=%s (%d open)",
		pos.Mint, pos.EntryPrice, pos.Quantity.StringFixed(2), count)
	m.notify.SendText(fmt.Sprintf("🟢 Bought %s at %s SOL", pos.Mint, pos.EntryPrice))
	return nil
}

// HandleCurveUpdate absorbs a streamed account update: refresh the cached
// price, or mark the position's curve completed so the monitor stops
// trusting curve prices for it.
func (m *Manager) HandleCurveUpdate(account string, state curve.State) {
	if state.Completed {
		m.prices.Remove(account)
		m.mu.Lock()
		for _, pos := range m.open {
			if pos.Curve == account && !pos.CurveCompleted {
				pos.CurveCompleted = true
				logger.Warnf("[POSITION] curve completed for %s, price feed is dead", pos.Mint)
			}
		}
		m.mu.Unlock()
		return
	}
	price, err := state.SpotPrice()
	if err != nil {
		return
	}
	m.prices.Put(account, price)
}

// UpdateStrategy swaps in hot-reloaded exit thresholds. Applies from the
// next monitor tick; in-flight evaluations finish under the old values.
func (m *Manager) UpdateStrategy(s config.StrategyConfig) {
	m.strategyMu.Lock()
	m.strategy = s
	m.strategyMu.Unlock()
}

func (m *Manager) currentStrategy() config.StrategyConfig {
	m.strategyMu.RLock()
	defer m.strategyMu.RUnlock()
	return m.strategy
}

// Run drives the monitor loop until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	for {
		interval := m.currentStrategy().MonitorInterval
		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
			m.Tick(ctx)
		}
	}
}

// Tick evaluates every open position once and waits for the resulting exit
// attempts. Positions already mid-exit are skipped.
func (m *Manager) Tick(ctx context.Context) {
	strat := m.currentStrategy()

	m.mu.Lock()
	due := make([]*Position, 0, len(m.open))
	for _, pos := range m.open {
		if pos.State != StateOpen || m.inflight[pos.Mint] {
			continue
		}
		m.inflight[pos.Mint] = true
		due = append(due, pos)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, pos := range due {
		wg.Add(1)
		go func(pos *Position) {
			defer wg.Done()
			defer func() {
				m.mu.Lock()
				delete(m.inflight, pos.Mint)
				m.mu.Unlock()
			}()
			m.evaluate(ctx, pos, strat)
		}(pos)
	}
	wg.Wait()
}

func (m *Manager) evaluate(ctx context.Context, pos *Position, strat config.StrategyConfig) {
	price, priceOK := m.currentPrice(ctx, pos)
	elapsed := m.now().Sub(pos.OpenedAt)

	reason := exitReason(strat, pos.EntryPrice, price, priceOK, elapsed)
	if reason == "" {
		return
	}
	m.close(ctx, pos, strat, reason, price)
}

// exitReason checks the exit triggers in priority order. An unavailable
// price disarms take-profit and stop-loss but never timeout.
func exitReason(strat config.StrategyConfig, entry, price decimal.Decimal, priceOK bool, elapsed time.Duration) string {
	tp := entry.Mul(decimal.NewFromFloat(1 + strat.TakeProfitPct/100))
	sl := entry.Mul(decimal.NewFromFloat(1 + strat.StopLossPct/100))
	for _, trigger := range strat.ExitPriority {
		switch trigger {
		case ExitTakeProfit:
			if priceOK && price.GreaterThanOrEqual(tp) {
				return ExitTakeProfit
			}
		case ExitStopLoss:
			if priceOK && price.LessThanOrEqual(sl) {
				return ExitStopLoss
			}
		case ExitTimeout:
			if elapsed >= strat.Timeout {
				return ExitTimeout
			}
		}
	}
	return ""
}

func (m *Manager) currentPrice(ctx context.Context, pos *Position) (decimal.Decimal, bool) {
	if pos.CurveCompleted {
		return decimal.Zero, false
	}
	if price, ok := m.prices.Get(pos.Curve); ok {
		return price, true
	}
	raw, err := m.fetcher.GetAccountInfo(ctx, pos.Curve)
	if err != nil {
		logger.Warnf("[POSITION] %s price fetch failed: %v", pos.Mint, err)
		return decimal.Zero, false
	}
	state, err := curve.Decode(raw)
	if err != nil {
		logger.Warnf("[POSITION] %s curve decode failed: %v", pos.Mint, err)
		return decimal.Zero, false
	}
	price, err := state.SpotPrice()
	if err != nil {
		return decimal.Zero, false
	}
	m.prices.Put(pos.Curve, price)
	return price, true
}

func (m *Manager) close(ctx context.Context, pos *Position, strat config.StrategyConfig, reason string, price decimal.Decimal) {
	m.mu.Lock()
	pos.State = StateClosing
	m.mu.Unlock()

	fill, err := m.exec.Sell(ctx, pos.Mint, pos.Quantity, price)
	if err != nil {
		m.mu.Lock()
		pos.SellRetries++
		retries := pos.SellRetries
		abandoned := retries >= strat.MaxSellRetries
		if abandoned {
			pos.State = StateAbandoned
			pos.ExitReason = reason
			pos.ClosedAt = m.now()
			delete(m.open, pos.Mint)
			m.pushClosed(pos.snapshot())
		} else {
			pos.State = StateOpen
		}
		m.mu.Unlock()

		if abandoned {
			m.tracker.Untrack(pos.Curve)
			logger.Errorf("[POSITION] %s abandoned after %d failed sells: %v", pos.Mint, retries, err)
			m.notify.SendText(fmt.Sprintf("🚨 ABANDONED %s: %d sell attempts failed, tokens still held", pos.Mint, retries))
			return
		}
		logger.Warnf("[POSITION] %s sell failed (attempt %d/%d), re-armed: %v",
			pos.Mint, retries, strat.MaxSellRetries, err)
		return
	}

	m.mu.Lock()
	pos.State = StateClosed
	pos.ExitReason = reason
	pos.ExitPrice = fill.Price
	pos.SellSignature = fill.Signature
	pos.ClosedAt = m.now()
	delete(m.open, pos.Mint)
	m.pushClosed(pos.snapshot())
	m.mu.Unlock()

	m.tracker.Untrack(pos.Curve)
	pnl := pnlPct(pos.EntryPrice, fill.Price)
	logger.Infof("[POSITION] closed %s via %s at %s (%s%%)", pos.Mint, reason, fill.Price, pnl)
	m.notify.SendText(fmt.Sprintf("🔴 Sold %s via %s at %s SOL (%s%%)", pos.Mint, reason, fill.Price, pnl))
}

// pushClosed must be called with m.mu held.
func (m *Manager) pushClosed(s Snapshot) {
	m.closed = append(m.closed, s)
	if len(m.closed) > closedHistory {
		m.closed = m.closed[len(m.closed)-closedHistory:]
	}
}

func pnlPct(entry, exit decimal.Decimal) string {
	if entry.IsZero() {
		return "0.00"
	}
	return exit.Sub(entry).Div(entry).Mul(decimal.NewFromInt(100)).StringFixed(2)
}

// OpenCount reports how many positions are currently held.
func (m *Manager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}

// Snapshots returns dashboard copies of open then recently closed
// positions, newest closed first.
func (m *Manager) Snapshots() (open, closed []Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	open = make([]Snapshot, 0, len(m.open))
	for _, pos := range m.open {
		open = append(open, pos.snapshot())
	}
	closed = make([]Snapshot, len(m.closed))
	for i, s := range m.closed {
		closed[len(m.closed)-1-i] = s
	}
	return open, closed
}
