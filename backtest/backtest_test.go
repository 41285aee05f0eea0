package backtest

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/evdnx/gotrade/config"
	"github.com/evdnx/gotrade/indicator"
	"github.com/evdnx/gotrade/strategy"
	"github.com/evdnx/gotrade/types"
)

func TestPortfolio_BuyAndPosition(t *testing.T) {
	p := NewPortfolio(10_000)
	if err := p.Buy(20_000, 0.5); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if p.Cash() != 0 {
		t.Fatalf("expected cash 0 after buying 0.5*20000, got %v", p.Cash())
	}
	qty, avg := p.Position()
	if qty != 0.5 || avg != 20_000 {
		t.Fatalf("unexpected position: qty=%v avg=%v", qty, avg)
	}
	if eq := p.Equity(22_000); eq != 11_000 {
		t.Fatalf("unexpected equity %v", eq)
	}
}

func TestPortfolio_InsufficientFunds(t *testing.T) {
	p := NewPortfolio(1000)
	if err := p.Buy(2000, 1); !errors.Is(err, ErrInsufficientCash) {
		t.Fatalf("expected ErrInsufficientCash, got %v", err)
	}
	if p.Cash() != 1000 {
		t.Fatalf("cash should stay unchanged")
	}
	if err := p.Sell(2000, 1); !errors.Is(err, ErrInsufficientHoldings) {
		t.Fatalf("expected ErrInsufficientHoldings, got %v", err)
	}
}

func peak(n int) []types.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]types.Candle, n)
	for i := range out {
		c := 100 + float64(i)
		if i >= n/2 {
			c = 100 + float64(n-i)
		}
		out[i] = types.Candle{
			OpenTime:  start.Add(time.Duration(i) * time.Hour),
			CloseTime: start.Add(time.Duration(i+1)*time.Hour - time.Millisecond),
			Open:      c, High: c + 1, Low: c - 1, Close: c, Volume: 10,
		}
	}
	return out
}

func newChain(t *testing.T) *strategy.Chain {
	t.Helper()
	c, err := strategy.NewChain(config.StrategyConfig{
		Primary:          strategy.NameAnticipation,
		Fallback:         strategy.NameCrossover,
		FallbackActive:   true,
		VolatilityFactor: 0.5,
	}, nil)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	return c
}

func TestRunBuysRallyAndSellsDecline(t *testing.T) {
	res, err := Run(peak(120), newChain(t), Options{Windows: indicator.DefaultWindows()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.InitialBalance != DefaultBalance {
		t.Fatalf("expected the default balance, got %v", res.InitialBalance)
	}
	if len(res.Trades) < 2 || res.Trades[0].Side != types.Buy || res.Trades[len(res.Trades)-1].Side != types.Sell {
		t.Fatalf("expected buy first and sell last, got %+v", res.Trades)
	}
	if res.RemainingAsset != 0 {
		t.Fatalf("expected no holdings after the final sell, got %v", res.RemainingAsset)
	}
	buy, sell := res.Trades[0], res.Trades[1]
	want := DefaultBalance * sell.Price / buy.Price
	if math.Abs(res.FinalBalance-want) > 1e-6 {
		t.Fatalf("final balance %v, want %v", res.FinalBalance, want)
	}
	if math.Abs(res.Profit-(res.FinalBalance-DefaultBalance)) > 1e-9 {
		t.Fatalf("profit %v does not match balance change", res.Profit)
	}
	if res.Skipped == 0 {
		t.Fatalf("the warm-up candles should be skipped")
	}
}

func TestRunWithShortHistoryTradesNothing(t *testing.T) {
	res, err := Run(peak(10), newChain(t), Options{StartBalance: 500, Windows: indicator.DefaultWindows()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Trades) != 0 || res.FinalBalance != 500 || res.Profit != 0 || res.Skipped != 8 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestLoadCSV(t *testing.T) {
	in := "Timestamp,Open,High,Low,Close,Volume,Extra\n" +
		"1704070800,2,3,1,2.5,11,x\n" +
		"1704067200,1,2,0.5,1.5,10,y\n" +
		"bad,1,1,1,1,1,z\n" +
		"2024-01-01T02:00:00Z,3,4,2,3.5,12,\n"
	candles, err := LoadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(candles) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(candles))
	}
	if candles[0].Close != 1.5 || candles[2].Close != 3.5 || candles[1].Volume != 11 {
		t.Fatalf("unexpected candles %+v", candles)
	}
}
