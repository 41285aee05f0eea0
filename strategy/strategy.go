package strategy

import (
	"fmt"

	"github.com/evdnx/gotrade/config"
	"github.com/evdnx/gotrade/indicator"
	"github.com/evdnx/gotrade/types"
)

// Strategy turns an indicator bundle into a signal. The boolean is false
// when the strategy has no opinion (inconclusive); the signal is then HOLD.
type Strategy interface {
	Name() string
	Generate(b *indicator.Bundle, cfg config.StrategyConfig) (types.Signal, bool)
}

// Names of the built-in strategies, as used in configuration.
const (
	NameAnticipation = "ma_anticipation"
	NameCrossover    = "ma_crossover"
	NameMACD         = "macd_crossover"
	NameVortex       = "vortex"
)

// ByName returns the built-in strategy registered under name.
func ByName(name string) (Strategy, error) {
	switch name {
	case NameAnticipation:
		return MovingAverageAnticipation{}, nil
	case NameCrossover:
		return MovingAverageCrossover{}, nil
	case NameMACD:
		return MACDCrossover{}, nil
	case NameVortex:
		return Vortex{}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

func inconclusive() (types.Signal, bool) { return types.SignalHold, false }
