package strategy

import (
	"math"

	"github.com/evdnx/gotrade/config"
	"github.com/evdnx/gotrade/indicator"
	"github.com/evdnx/gotrade/types"
)

// MovingAverageAnticipation trades a crossover before it happens. When the
// two averages are closer than volatility*VolatilityFactor, the gradients
// decide the direction.
type MovingAverageAnticipation struct{}

func (MovingAverageAnticipation) Name() string { return NameAnticipation }

func (MovingAverageAnticipation) Generate(b *indicator.Bundle, cfg config.StrategyConfig) (types.Signal, bool) {
	if len(b.MAFast) == 0 || len(b.MASlow) == 0 {
		return inconclusive()
	}
	// the newest volatility bucket may still be forming
	vol, ok := indicator.FromEnd(b.Volatility, 1)
	if !ok {
		return inconclusive()
	}
	diff := math.Abs(indicator.Last(b.MAFast) - indicator.Last(b.MASlow))
	if diff >= vol*cfg.VolatilityFactor {
		return inconclusive()
	}
	fg, sg := b.MAFastGradient, b.MASlowGradient
	switch {
	case fg > 0 && fg > sg:
		return types.SignalBuy, true
	case fg < 0 && fg < sg:
		return types.SignalSell, true
	default:
		return inconclusive()
	}
}

// MovingAverageCrossover buys while the fast average is above the slow one
// and sells otherwise. It always has an opinion.
type MovingAverageCrossover struct{}

func (MovingAverageCrossover) Name() string { return NameCrossover }

func (MovingAverageCrossover) Generate(b *indicator.Bundle, _ config.StrategyConfig) (types.Signal, bool) {
	if indicator.Last(b.MAFast) > indicator.Last(b.MASlow) {
		return types.SignalBuy, true
	}
	return types.SignalSell, true
}
