package sizing

import (
	"fmt"
	"math"

	"github.com/evdnx/gotrade/types"
)

// Mode selects how the order quantity is derived.
type Mode int

const (
	ByQuantity Mode = iota
	ByValue
)

// Intent is the desired trade before exchange rounding.
type Intent struct {
	Side     types.Side
	Mode     Mode
	Quantity float64 // ByQuantity
	Value    float64 // ByValue, in quote currency
}

// ZeroQuantityError means the order quantity collapsed to zero after
// rounding to the step size. Such an order is never submitted.
type ZeroQuantityError struct {
	Side types.Side
	Raw  float64
	Step float64
}

func (e *ZeroQuantityError) Error() string {
	return fmt.Sprintf("%s quantity %g rounds to zero with step %g", e.Side, e.Raw, e.Step)
}

// ResolveQuantity turns an intent into a raw quantity. By value divides by
// the limit price; by quantity subtracts what partial fills already bought.
func ResolveQuantity(in Intent, limitPrice, discount float64) float64 {
	if in.Mode == ByValue {
		if limitPrice <= 0 {
			return 0
		}
		return in.Value / limitPrice
	}
	return math.Max(in.Quantity-discount, 0)
}

// Market is the snapshot the limit price heuristic looks at.
type Market struct {
	Close     float64
	Volume    float64
	AvgVolume float64
	RSI       float64
}

// ComputeLimitPrice offsets the close depending on momentum and activity.
// Buys go below market when oversold and above it otherwise; sells mirror
// that. Sell prices never go below minSellPrice.
func ComputeLimitPrice(side types.Side, m Market, minSellPrice float64) float64 {
	c := m.Close
	if side == types.Buy {
		switch {
		case m.RSI < 30:
			return c - 0.002*c
		case m.Volume < m.AvgVolume:
			return c + 0.002*c
		default:
			return c + 0.005*c
		}
	}
	var price float64
	switch {
	case m.RSI > 70:
		price = c + 0.002*c
	case m.Volume < m.AvgVolume:
		price = c - 0.002*c
	default:
		price = c - 0.005*c
	}
	if price < minSellPrice {
		price = minSellPrice
	}
	return price
}

// Request carries everything Build needs for one order.
type Request struct {
	Symbol       string
	Type         types.OrderType
	Intent       Intent
	Market       Market
	Filters      types.SymbolFilters
	Discount     float64 // partial quantity already filled
	MinSellPrice float64
}

// Build resolves a request into an exchange-valid order. Limit orders get
// a heuristic price rounded to the tick size; market orders carry no
// price. A quantity that rounds to zero fails with *ZeroQuantityError.
func Build(r Request) (types.OrderSpec, error) {
	spec := types.OrderSpec{Symbol: r.Symbol, Side: r.Intent.Side, Type: r.Type}
	ref := r.Market.Close
	if r.Type == types.Limit {
		limit := ComputeLimitPrice(r.Intent.Side, r.Market, r.MinSellPrice)
		spec.Price = AdjustToIncrement(limit, r.Filters.TickSize)
		ref = spec.Price
	}
	raw := ResolveQuantity(r.Intent, ref, r.Discount)
	spec.Quantity = AdjustToIncrement(raw, r.Filters.StepSize)
	if spec.Quantity <= 0 {
		return types.OrderSpec{}, &ZeroQuantityError{Side: r.Intent.Side, Raw: raw, Step: r.Filters.StepSize}
	}
	return spec, nil
}
