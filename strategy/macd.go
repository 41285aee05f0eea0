package strategy

import (
	"github.com/evdnx/gotrade/config"
	"github.com/evdnx/gotrade/indicator"
	"github.com/evdnx/gotrade/types"
)

// MACDCrossover signals when the MACD line crosses its signal line between
// the previous and the current candle.
type MACDCrossover struct{}

func (MACDCrossover) Name() string { return NameMACD }

func (MACDCrossover) Generate(b *indicator.Bundle, _ config.StrategyConfig) (types.Signal, bool) {
	macdCur, ok1 := indicator.FromEnd(b.MACDLine, 0)
	macdPrev, ok2 := indicator.FromEnd(b.MACDLine, 1)
	sigCur, ok3 := indicator.FromEnd(b.MACDSignal, 0)
	sigPrev, ok4 := indicator.FromEnd(b.MACDSignal, 1)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return types.SignalHold, true
	}
	switch {
	case macdPrev < sigPrev && macdCur > sigCur:
		return types.SignalBuy, true
	case macdPrev > sigPrev && macdCur < sigCur:
		return types.SignalSell, true
	default:
		return types.SignalHold, true
	}
}

// Vortex compares the latest VI+ and VI- readings.
type Vortex struct{}

func (Vortex) Name() string { return NameVortex }

func (Vortex) Generate(b *indicator.Bundle, _ config.StrategyConfig) (types.Signal, bool) {
	plus, ok1 := indicator.FromEnd(b.VortexPlus, 0)
	minus, ok2 := indicator.FromEnd(b.VortexMinus, 0)
	if !ok1 || !ok2 {
		return types.SignalHold, true
	}
	switch {
	case plus > minus:
		return types.SignalBuy, true
	case minus > plus:
		return types.SignalSell, true
	default:
		return types.SignalHold, true
	}
}
