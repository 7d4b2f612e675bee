package detector

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MSB0095/sol-beast-sub004/internal/config"
	"github.com/MSB0095/sol-beast-sub004/internal/curve"
)

// rejectReason applies the acceptance heuristic to a candidate asset and
// returns "" to accept or a human-readable reason to reject. Pure function
// of the inputs; thresholds come from configuration, never from here.
func rejectReason(strat config.StrategyConfig, state curve.State, price decimal.Decimal, priceErr error) string {
	if state.Completed && !strat.AcceptCompleted {
		return "curve already completed"
	}
	if strat.RequireCreator && state.Creator.IsZero() {
		return "creator not present in curve account"
	}
	if priceErr != nil {
		return fmt.Sprintf("price unavailable: %v", priceErr)
	}
	if strat.MaxPriceSOL > 0 && price.GreaterThan(decimal.NewFromFloat(strat.MaxPriceSOL)) {
		return fmt.Sprintf("price %s above limit %g", price, strat.MaxPriceSOL)
	}
	if strat.MinLiquiditySOL > 0 {
		liquidity := decimal.NewFromUint64(state.RealSolReserves).Div(decimal.NewFromInt(1_000_000_000))
		if liquidity.LessThan(decimal.NewFromFloat(strat.MinLiquiditySOL)) {
			return fmt.Sprintf("liquidity %s SOL below minimum %g", liquidity, strat.MinLiquiditySOL)
		}
	}
	return ""
}
