package detector

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/MSB0095/sol-beast-sub004/internal/cache"
	"github.com/MSB0095/sol-beast-sub004/internal/config"
	"github.com/MSB0095/sol-beast-sub004/internal/curve"
	"github.com/MSB0095/sol-beast-sub004/internal/executor"
	"github.com/MSB0095/sol-beast-sub004/internal/logger"
	"github.com/MSB0095/sol-beast-sub004/internal/position"
	"github.com/MSB0095/sol-beast-sub004/internal/solana"
	"github.com/MSB0095/sol-beast-sub004/internal/store/detectionlog"
	"github.com/MSB0095/sol-beast-sub004/internal/stream"
)

// Instruction discriminator of the launchpad's create instruction.
var createDiscriminator = []byte{24, 30, 200, 40, 5, 28, 7, 119}

var errNoCreateInstruction = errors.New("no create instruction for the launchpad program in transaction")

// Chain reads raced across RPC endpoints.
type Chain interface {
	GetTransaction(ctx context.Context, signature string) (gjson.Result, error)
	GetAccountInfo(ctx context.Context, address string) ([]byte, error)
}

// Book is the position manager surface the router drives.
type Book interface {
	Open(pos *position.Position) error
	HandleCurveUpdate(account string, state curve.State)
}

// Stats counts what the router has seen and done.
type Stats struct {
	LogsSeen     int64 `json:"logs_seen"`
	Duplicates   int64 `json:"duplicates"`
	Creations    int64 `json:"creations"`
	EvalFailures int64 `json:"eval_failures"`
	Rejected     int64 `json:"rejected"`
	Bought       int64 `json:"bought"`
}

// Router is the single consumer of the stream queue. Log messages go
// through dedup, creation-marker scan and asset evaluation; account
// messages refresh curve prices. Strictly one message at a time, so
// detection order follows queue arrival order.
type Router struct {
	chainCfg config.ChainConfig
	program  solana.Pubkey
	metadata solana.Pubkey

	events <-chan stream.Envelope
	dedup  *cache.Cache[string, struct{}]
	chain  Chain
	exec   executor.Executor
	book   Book
	log    *detectionlog.Store

	strategyMu sync.RWMutex
	strategy   config.StrategyConfig

	logsSeen     atomic.Int64
	duplicates   atomic.Int64
	creations    atomic.Int64
	evalFailures atomic.Int64
	rejected     atomic.Int64
	bought       atomic.Int64
}

func NewRouter(chainCfg config.ChainConfig, strategy config.StrategyConfig, events <-chan stream.Envelope,
	dedup *cache.Cache[string, struct{}], chain Chain, exec executor.Executor, book Book,
	log *detectionlog.Store) (*Router, error) {
	program, err := solana.PubkeyFromBase58(chainCfg.LaunchpadProgram)
	if err != nil {
		return nil, err
	}
	metadata, err := solana.PubkeyFromBase58(chainCfg.MetadataProgram)
	if err != nil {
		return nil, err
	}
	return &Router{
		chainCfg: chainCfg,
		program:  program,
		metadata: metadata,
		events:   events,
		dedup:    dedup,
		chain:    chain,
		exec:     exec,
		book:     book,
		log:      log,
		strategy: strategy,
	}, nil
}

// UpdateStrategy swaps in hot-reloaded heuristic thresholds.
func (r *Router) UpdateStrategy(s config.StrategyConfig) {
	r.strategyMu.Lock()
	r.strategy = s
	r.strategyMu.Unlock()
}

func (r *Router) currentStrategy() config.StrategyConfig {
	r.strategyMu.RLock()
	defer r.strategyMu.RUnlock()
	return r.strategy
}

// Run consumes the queue until ctx is cancelled.
func (r *Router) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-r.events:
			if !ok {
				return nil
			}
			switch env.Kind {
			case stream.KindLog:
				r.handleLog(ctx, env)
			case stream.KindAccount:
				r.handleAccount(env)
			}
		}
	}
}

func (r *Router) handleAccount(env stream.Envelope) {
	raw := gjson.GetBytes(env.Raw, "value.data.0").String()
	if raw == "" {
		return
	}
	blob, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		logger.Debugf("[DETECT] account update for %s: bad base64: %v", env.Account, err)
		return
	}
	state, err := curve.Decode(blob)
	if err != nil {
		logger.Debugf("[DETECT] account update for %s: %v", env.Account, err)
		return
	}
	r.book.HandleCurveUpdate(env.Account, state)
}

func (r *Router) handleLog(ctx context.Context, env stream.Envelope) {
	r.logsSeen.Add(1)

	value := gjson.GetBytes(env.Raw, "value")
	signature := value.Get("signature").String()
	if signature == "" {
		return
	}
	// Failed transactions never create anything.
	if txErr := value.Get("err"); txErr.Exists() && txErr.Type != gjson.Null {
		return
	}

	// Dedup before the marker scan: the same signature arrives once per
	// connected endpoint and must be handled at most once.
	if r.dedup.Contains(signature) {
		r.duplicates.Add(1)
		return
	}
	r.dedup.Put(signature, struct{}{})

	if !r.hasCreationMarker(value.Get("logs")) {
		return
	}
	r.creations.Add(1)
	logger.Infof("[DETECT] creation candidate %s via %s", signature, env.Endpoint)
	r.evaluate(ctx, signature)
}

func (r *Router) hasCreationMarker(logs gjson.Result) bool {
	found := false
	logs.ForEach(func(_, line gjson.Result) bool {
		for _, marker := range r.chainCfg.CreationMarkers {
			if strings.Contains(line.String(), marker) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// evaluate runs the full candidate pipeline: transaction fetch, create
// instruction extraction, curve fetch, heuristic, buy. Failures drop the
// candidate; launch windows are too short to queue retries.
func (r *Router) evaluate(ctx context.Context, signature string) {
	strat := r.currentStrategy()

	tx, err := r.chain.GetTransaction(ctx, signature)
	if err != nil {
		r.evalFailures.Add(1)
		logger.Warnf("[DETECT] %s: tx fetch failed, candidate dropped: %v", signature, err)
		r.appendLog(ctx, detectionlog.Record{Signature: signature, Reason: "tx fetch failed: " + err.Error()})
		return
	}

	launch, err := r.extractLaunch(tx)
	if err != nil {
		r.evalFailures.Add(1)
		logger.Warnf("[DETECT] %s: %v", signature, err)
		r.appendLog(ctx, detectionlog.Record{Signature: signature, Reason: err.Error()})
		return
	}

	// First sight bypasses the price cache; there is no prior entry.
	blob, err := r.chain.GetAccountInfo(ctx, launch.curve)
	if err != nil {
		r.evalFailures.Add(1)
		logger.Warnf("[DETECT] %s: curve fetch failed: %v", signature, err)
		r.appendLog(ctx, detectionlog.Record{Signature: signature, Mint: launch.mint, Curve: launch.curve,
			Reason: "curve fetch failed: " + err.Error()})
		return
	}
	state, err := curve.Decode(blob)
	if err != nil {
		r.evalFailures.Add(1)
		logger.Warnf("[DETECT] %s: %v", signature, err)
		r.appendLog(ctx, detectionlog.Record{Signature: signature, Mint: launch.mint, Curve: launch.curve,
			Reason: err.Error()})
		return
	}
	if launch.creator == "" && !state.Creator.IsZero() {
		launch.creator = state.Creator.String()
	}

	price, priceErr := state.SpotPrice()
	liquidity := decimal.NewFromUint64(state.RealSolReserves).Div(decimal.NewFromInt(1_000_000_000))
	name, symbol := r.fetchMetadata(ctx, launch.mint)

	rec := detectionlog.Record{
		Signature:    signature,
		Mint:         launch.mint,
		Name:         name,
		Symbol:       symbol,
		Creator:      launch.creator,
		Curve:        launch.curve,
		LiquiditySOL: liquidity.String(),
	}
	if priceErr == nil {
		rec.PriceSOL = price.String()
	}

	if reason := rejectReason(strat, state, price, priceErr); reason != "" {
		r.rejected.Add(1)
		rec.Reason = reason
		logger.Infof("[DETECT] rejected %s: %s", launch.mint, reason)
		r.appendLog(ctx, rec)
		return
	}

	fill, err := r.exec.Buy(ctx, launch.mint, strat.BuyAmountSOL, price)
	if err != nil {
		r.evalFailures.Add(1)
		rec.Reason = "buy failed: " + err.Error()
		logger.Errorf("[DETECT] buy %s failed: %v", launch.mint, err)
		r.appendLog(ctx, rec)
		return
	}

	pos := &position.Position{
		Mint:         launch.mint,
		Curve:        launch.curve,
		EntryPrice:   fill.Price,
		Quantity:     fill.TokenAmount,
		OpenedAt:     fill.ExecutedAt,
		BuySignature: fill.Signature,
	}
	if err := r.book.Open(pos); err != nil {
		logger.Warnf("[DETECT] %s bought but not registered: %v", launch.mint, err)
	}
	r.bought.Add(1)
	rec.Accepted = true
	rec.BuySignature = fill.Signature
	r.appendLog(ctx, rec)
}

// fetchMetadata reads the mint's metadata PDA for its name and symbol.
// Best effort: the account may not exist yet in the same slot as the
// create, and the verdict does not depend on it.
func (r *Router) fetchMetadata(ctx context.Context, mint string) (name, symbol string) {
	mintKey, err := solana.PubkeyFromBase58(mint)
	if err != nil {
		return "", ""
	}
	addr, err := solana.MetadataAddress(mintKey, r.metadata)
	if err != nil {
		logger.Debugf("[DETECT] metadata pda for %s: %v", mint, err)
		return "", ""
	}
	blob, err := r.chain.GetAccountInfo(ctx, addr.String())
	if err != nil {
		logger.Debugf("[DETECT] metadata fetch for %s: %v", mint, err)
		return "", ""
	}
	md, err := solana.DecodeTokenMetadata(blob)
	if err != nil {
		logger.Debugf("[DETECT] metadata decode for %s: %v", mint, err)
		return "", ""
	}
	return md.Name, md.Symbol
}

type launchDetails struct {
	mint    string
	curve   string
	creator string
}

// extractLaunch pulls the new asset's mint, curve account and creator from
// the transaction's create instruction, checking top-level and inner
// instructions of the launchpad program. When the instruction carries too
// few accounts the curve address is re-derived from the mint.
func (r *Router) extractLaunch(tx gjson.Result) (launchDetails, error) {
	var details launchDetails
	var found bool

	check := func(instr gjson.Result) bool {
		if instr.Get("programId").String() != r.chainCfg.LaunchpadProgram {
			return true
		}
		data, err := base58.Decode(instr.Get("data").String())
		if err != nil || len(data) < len(createDiscriminator) {
			return true
		}
		if !bytes.Equal(data[:len(createDiscriminator)], createDiscriminator) {
			return true
		}
		accounts := instr.Get("accounts").Array()
		if len(accounts) == 0 {
			return true
		}
		details.mint = accounts[0].String()
		if len(accounts) > 2 {
			details.curve = accounts[2].String()
		}
		if len(accounts) > 7 {
			details.creator = accounts[7].String()
		}
		found = true
		return false
	}

	tx.Get("transaction.message.instructions").ForEach(func(_, instr gjson.Result) bool {
		return check(instr)
	})
	if !found {
		tx.Get("meta.innerInstructions").ForEach(func(_, inner gjson.Result) bool {
			inner.Get("instructions").ForEach(func(_, instr gjson.Result) bool {
				return check(instr)
			})
			return !found
		})
	}
	if !found {
		return details, errNoCreateInstruction
	}

	if details.curve == "" {
		mint, err := solana.PubkeyFromBase58(details.mint)
		if err != nil {
			return details, err
		}
		derived, err := solana.BondingCurveAddress(mint, r.program)
		if err != nil {
			return details, err
		}
		details.curve = derived.String()
	}
	return details, nil
}

func (r *Router) appendLog(ctx context.Context, rec detectionlog.Record) {
	if r.log == nil {
		return
	}
	r.log.Append(ctx, rec)
}

// Snapshot returns current counters for the dashboard.
func (r *Router) Snapshot() Stats {
	return Stats{
		LogsSeen:     r.logsSeen.Load(),
		Duplicates:   r.duplicates.Load(),
		Creations:    r.creations.Load(),
		EvalFailures: r.evalFailures.Load(),
		Rejected:     r.rejected.Load(),
		Bought:       r.bought.Load(),
	}
}
