package backtest

import (
	"errors"
	"time"

	"github.com/evdnx/gotrade/indicator"
	"github.com/evdnx/gotrade/logger"
	"github.com/evdnx/gotrade/strategy"
	"github.com/evdnx/gotrade/types"
)

// DefaultBalance is the quote balance a replay starts with.
const DefaultBalance = 1000

// Decider turns a bundle into a decision; *strategy.Chain is one.
type Decider interface {
	Decide(b *indicator.Bundle) strategy.Decision
}

type Options struct {
	StartBalance float64 // DefaultBalance when 0
	Windows      indicator.Windows
	Log          logger.Logger
}

// Trade is one simulated fill.
type Trade struct {
	Index int
	Time  time.Time
	Side  types.Side
	Price float64
	Qty   float64
}

// Result summarises a replay.
type Result struct {
	InitialBalance float64
	FinalBalance   float64 // quote balance at the end
	RemainingAsset float64
	LastClose      float64
	Profit         float64 // final equity at LastClose minus InitialBalance
	Trades         []Trade
	Skipped        int // candles without enough history for the indicators
}

// Run replays candles through d. At every candle the bundle is computed
// on the history up to it; BUY spends the whole quote balance at the
// close and SELL sells all holdings.
func Run(candles []types.Candle, d Decider, opts Options) (Result, error) {
	if opts.StartBalance <= 0 {
		opts.StartBalance = DefaultBalance
	}
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	pf := NewPortfolio(opts.StartBalance)
	res := Result{InitialBalance: opts.StartBalance}

	for i := 2; i < len(candles); i++ {
		b, err := indicator.Compute(candles[:i+1], opts.Windows)
		if err != nil {
			var insufficient *indicator.InsufficientDataError
			if errors.As(err, &insufficient) {
				res.Skipped++
				continue
			}
			return res, err
		}
		c := candles[i]
		held, _ := pf.Position()
		switch dec := d.Decide(b); {
		case dec.Signal == types.SignalBuy && pf.Cash() > 0:
			qty := pf.Cash() / c.Close
			if err := pf.Buy(c.Close, qty); err != nil {
				return res, err
			}
			res.Trades = append(res.Trades, Trade{Index: i, Time: c.CloseTime, Side: types.Buy, Price: c.Close, Qty: qty})
		case dec.Signal == types.SignalSell && held > 0:
			if err := pf.Sell(c.Close, held); err != nil {
				return res, err
			}
			res.Trades = append(res.Trades, Trade{Index: i, Time: c.CloseTime, Side: types.Sell, Price: c.Close, Qty: held})
		}
	}

	res.FinalBalance = pf.Cash()
	res.RemainingAsset, _ = pf.Position()
	if n := len(candles); n > 0 {
		res.LastClose = candles[n-1].Close
	}
	res.Profit = pf.Equity(res.LastClose) - res.InitialBalance
	opts.Log.Info("backtest_finished",
		logger.Float64("initial_balance", res.InitialBalance),
		logger.Float64("final_balance", res.FinalBalance),
		logger.Int("trades", len(res.Trades)),
		logger.Float64("remaining_asset", res.RemainingAsset),
		logger.Float64("profit", res.Profit),
	)
	return res, nil
}
