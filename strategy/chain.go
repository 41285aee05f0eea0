package strategy

import (
	"github.com/evdnx/gotrade/config"
	"github.com/evdnx/gotrade/indicator"
	"github.com/evdnx/gotrade/logger"
	"github.com/evdnx/gotrade/metrics"
	"github.com/evdnx/gotrade/types"
)

// Decision is the outcome of one pass through the chain.
type Decision struct {
	Signal       types.Signal
	Strategy     string // strategy that produced the signal
	Inconclusive bool   // primary had no opinion and no fallback ran
	FallbackUsed bool
}

// Chain runs the primary strategy and, when it is inconclusive and the
// fallback is active, the fallback strategy.
type Chain struct {
	Primary  Strategy
	Fallback Strategy // may be nil
	Cfg      config.StrategyConfig
	Log      logger.Logger
}

// NewChain resolves the configured strategies.
func NewChain(cfg config.StrategyConfig, log logger.Logger) (*Chain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	primary, err := ByName(cfg.Primary)
	if err != nil {
		return nil, err
	}
	c := &Chain{Primary: primary, Cfg: cfg, Log: log}
	if cfg.Fallback != "" {
		if c.Fallback, err = ByName(cfg.Fallback); err != nil {
			return nil, err
		}
	}
	if c.Log == nil {
		c.Log = logger.Nop()
	}
	return c, nil
}

// Decide evaluates the chain over b.
func (c *Chain) Decide(b *indicator.Bundle) Decision {
	sig, ok := c.Primary.Generate(b, c.Cfg)
	d := Decision{Signal: sig, Strategy: c.Primary.Name()}
	if !ok {
		if c.Cfg.FallbackActive && c.Fallback != nil {
			sig, _ = c.Fallback.Generate(b, c.Cfg)
			d = Decision{Signal: sig, Strategy: c.Fallback.Name(), FallbackUsed: true}
		} else {
			d = Decision{Signal: types.SignalHold, Strategy: c.Primary.Name(), Inconclusive: true}
			c.Log.Info("strategy_inconclusive", logger.String("strategy", c.Primary.Name()))
		}
	}
	c.Log.Info("strategy_decision",
		logger.String("strategy", d.Strategy),
		logger.String("signal", string(d.Signal)),
		logger.Bool("fallback", d.FallbackUsed),
	)
	metrics.Signals.WithLabelValues(d.Strategy, string(d.Signal)).Inc()
	return d
}
