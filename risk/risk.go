package risk

import (
	"fmt"

	"github.com/evdnx/gotrade/types"
)

// PositionState is the bot's view of its position in the traded asset.
// Only the cycle driver mutates it, once per cycle.
type PositionState struct {
	IsLong                  bool
	LastBuyPrice            float64
	LastSellPrice           float64
	PartialQuantityDiscount float64 // already filled part of open buy orders
}

// NoExecutedOrderWarning means the history has no filled order for a side.
// The fill price is reported as 0; the cycle continues.
type NoExecutedOrderWarning struct {
	Side types.Side
}

func (w *NoExecutedOrderWarning) Error() string {
	return fmt.Sprintf("no executed %s order in history", w.Side)
}

// RefreshPosition reports long when the free balance covers at least one
// step. Residue below a step cannot be sold and counts as flat.
func RefreshPosition(freeBalance, stepSize float64) bool {
	return freeBalance >= stepSize
}

// LastFillPrice returns the average fill price of the most recent filled
// order of the given side.
func LastFillPrice(history []types.Order, side types.Side) (float64, error) {
	var latest *types.Order
	for i := range history {
		o := &history[i]
		if o.Status != types.StatusFilled || o.Side != side {
			continue
		}
		if latest == nil || o.Time.After(latest.Time) {
			latest = o
		}
	}
	if latest == nil || latest.ExecutedQty == 0 {
		return 0, &NoExecutedOrderWarning{Side: side}
	}
	return latest.CumulativeQuoteQty / latest.ExecutedQty, nil
}

// RefreshLastFillPrices updates both last prices from history. Missing
// sides are returned as warnings; the state is updated either way.
func (p *PositionState) RefreshLastFillPrices(history []types.Order) []error {
	var warnings []error
	var err error
	if p.LastBuyPrice, err = LastFillPrice(history, types.Buy); err != nil {
		warnings = append(warnings, err)
	}
	if p.LastSellPrice, err = LastFillPrice(history, types.Sell); err != nil {
		warnings = append(warnings, err)
	}
	return warnings
}

// ReconcileOpenOrders folds partially filled open orders of side into the
// state: their executed quantity becomes the discount and the highest
// partially filled price becomes the provisional last price. It reports
// whether any open order of that side exists.
func (p *PositionState) ReconcileOpenOrders(open []types.Order, side types.Side) bool {
	p.PartialQuantityDiscount = 0
	found := false
	var best float64
	for _, o := range open {
		if o.Side != side {
			continue
		}
		found = true
		p.PartialQuantityDiscount += o.ExecutedQty
		if o.ExecutedQty > 0 && o.Price > best {
			best = o.Price
		}
	}
	if !found {
		return false
	}
	if side == types.Buy {
		p.LastBuyPrice = best
	} else {
		p.LastSellPrice = best
	}
	return true
}

// StopLossPrice is the level below which a long position is abandoned.
func StopLossPrice(lastBuyPrice, stopLossPct float64) float64 {
	return lastBuyPrice * (1 - stopLossPct)
}

// EvaluateStopLoss fires when the position is long and both the current
// and the previous close are below the stop level.
func EvaluateStopLoss(p PositionState, closes []float64, stopLossPct float64) bool {
	if !p.IsLong || len(closes) < 2 {
		return false
	}
	stop := StopLossPrice(p.LastBuyPrice, stopLossPct)
	return closes[len(closes)-1] < stop && closes[len(closes)-2] < stop
}

// MinSellPrice is the lowest acceptable limit sell price.
func MinSellPrice(lastBuyPrice, acceptableLossPct float64) float64 {
	return lastBuyPrice * (1 - acceptableLossPct)
}
