package position

import (
	"time"

	"github.com/shopspring/decimal"
)

type State string

const (
	StateOpen    State = "open"
	StateClosing State = "closing"
	StateClosed  State = "closed"
	// StateAbandoned means every sell attempt failed; the tokens are still
	// held but the engine stopped trying. Always paired with an alert.
	StateAbandoned State = "abandoned"
)

// Exit reasons, also the accepted exit_priority config values.
const (
	ExitTakeProfit = "take_profit"
	ExitStopLoss   = "stop_loss"
	ExitTimeout    = "timeout"
)

// Position is one open exposure. Owned exclusively by the Manager; callers
// only ever see Snapshot copies.
type Position struct {
	Mint         string
	Curve        string
	EntryPrice   decimal.Decimal
	Quantity     decimal.Decimal
	OpenedAt     time.Time
	BuySignature string

	State       State
	SellRetries int
	// CurveCompleted is set when an account update reports the curve
	// finished; the asset has migrated and curve prices are meaningless.
	CurveCompleted bool

	ExitReason    string
	ExitPrice     decimal.Decimal
	SellSignature string
	ClosedAt      time.Time
}

// Snapshot is the read-only dashboard view of a position.
type Snapshot struct {
	Mint           string    `json:"mint"`
	Curve          string    `json:"curve"`
	State          State     `json:"state"`
	EntryPrice     string    `json:"entry_price"`
	Quantity       string    `json:"quantity"`
	OpenedAt       time.Time `json:"opened_at"`
	BuySignature   string    `json:"buy_signature"`
	SellRetries    int       `json:"sell_retries,omitempty"`
	CurveCompleted bool      `json:"curve_completed,omitempty"`
	ExitReason     string    `json:"exit_reason,omitempty"`
	ExitPrice      string    `json:"exit_price,omitempty"`
	SellSignature  string    `json:"sell_signature,omitempty"`
	ClosedAt       time.Time `json:"closed_at,omitempty"`
}

func (p *Position) snapshot() Snapshot {
	s := Snapshot{
		Mint:           p.Mint,
		Curve:          p.Curve,
		State:          p.State,
		EntryPrice:     p.EntryPrice.String(),
		Quantity:       p.Quantity.String(),
		OpenedAt:       p.OpenedAt,
		BuySignature:   p.BuySignature,
		SellRetries:    p.SellRetries,
		CurveCompleted: p.CurveCompleted,
		ExitReason:     p.ExitReason,
		SellSignature:  p.SellSignature,
		ClosedAt:       p.ClosedAt,
	}
	if !p.ExitPrice.IsZero() {
		s.ExitPrice = p.ExitPrice.String()
	}
	return s
}
