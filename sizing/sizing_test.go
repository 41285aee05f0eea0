package sizing

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/evdnx/gotrade/types"
)

func TestAdjustToIncrementExamples(t *testing.T) {
	cases := []struct {
		value, inc, want float64
	}{
		{1.23456, 0.01, 1.23},
		{7, 1, 7},
		{7.9, 1, 7},
		{0.3, 0.1, 0.3},
		{0.123456789, 0.00001, 0.12345},
		{27123.456, 0.01, 27123.45},
		{0.75, 0.25, 0.75},
		{5, 0, 5},
	}
	for _, tc := range cases {
		if got := AdjustToIncrement(tc.value, tc.inc); got != tc.want {
			t.Fatalf("AdjustToIncrement(%v, %v) = %v, want %v", tc.value, tc.inc, got, tc.want)
		}
	}
}

func TestAdjustToIncrementProperties(t *testing.T) {
	incs := []float64{1, 0.1, 0.01, 0.001, 0.00001, 0.5, 0.25}
	for _, s := range incs {
		for i := 0; i < 200; i++ {
			x := float64(i)*0.7371 + math.Sqrt(float64(i))
			a := AdjustToIncrement(x, s)
			if a > x {
				t.Fatalf("adjust(%v, %v) = %v exceeds input", x, s, a)
			}
			if again := AdjustToIncrement(a, s); again != a {
				t.Fatalf("not idempotent for %v step %v: %v then %v", x, s, a, again)
			}
			steps := a / s
			if math.Abs(steps-math.Round(steps)) > 1e-6 {
				t.Fatalf("adjust(%v, %v) = %v is not a multiple of the step", x, s, a)
			}
		}
	}
}

func TestFormatIncrementIsPlain(t *testing.T) {
	got := FormatIncrement(0.0000123456, 0.00000001)
	if got != "0.00001234" {
		t.Fatalf("format = %q", got)
	}
	if strings.ContainsAny(got, "eE") {
		t.Fatalf("scientific notation in %q", got)
	}
	if got := FormatIncrement(7.9, 1); got != "7" {
		t.Fatalf("format = %q", got)
	}
	if got := FormatIncrement(1.2, 0.001); got != "1.200" {
		t.Fatalf("format = %q", got)
	}
}

func TestDecimals(t *testing.T) {
	cases := map[float64]int32{0.001: 3, 0.01: 2, 1: 0, 10: 0, 0.25: 2, 0.00000001: 8}
	for inc, want := range cases {
		if got := Decimals(inc); got != want {
			t.Fatalf("Decimals(%v) = %d, want %d", inc, got, want)
		}
	}
}

func TestResolveQuantity(t *testing.T) {
	if q := ResolveQuantity(Intent{Mode: ByValue, Value: 100}, 25, 0); q != 4 {
		t.Fatalf("by value = %v", q)
	}
	if q := ResolveQuantity(Intent{Mode: ByValue, Value: 100}, 0, 0); q != 0 {
		t.Fatalf("by value without price = %v", q)
	}
	if q := ResolveQuantity(Intent{Mode: ByQuantity, Quantity: 1}, 25, 0.25); q != 0.75 {
		t.Fatalf("by quantity = %v", q)
	}
	if q := ResolveQuantity(Intent{Mode: ByQuantity, Quantity: 1}, 25, 3); q != 0 {
		t.Fatalf("discount larger than request = %v", q)
	}
}

func TestComputeLimitPrice(t *testing.T) {
	cases := []struct {
		name string
		side types.Side
		m    Market
		min  float64
		want float64
	}{
		{"buy oversold", types.Buy, Market{Close: 1000, Volume: 5, AvgVolume: 1, RSI: 20}, 0, 998},
		{"buy quiet", types.Buy, Market{Close: 1000, Volume: 1, AvgVolume: 5, RSI: 50}, 0, 1002},
		{"buy busy", types.Buy, Market{Close: 1000, Volume: 5, AvgVolume: 1, RSI: 50}, 0, 1005},
		{"sell overbought", types.Sell, Market{Close: 1000, Volume: 5, AvgVolume: 1, RSI: 80}, 0, 1002},
		{"sell quiet", types.Sell, Market{Close: 1000, Volume: 1, AvgVolume: 5, RSI: 50}, 0, 998},
		{"sell busy", types.Sell, Market{Close: 1000, Volume: 5, AvgVolume: 1, RSI: 50}, 0, 995},
		{"sell clamped", types.Sell, Market{Close: 1000, Volume: 5, AvgVolume: 1, RSI: 50}, 999, 999},
		{"buy ignores floor", types.Buy, Market{Close: 1000, Volume: 5, AvgVolume: 1, RSI: 20}, 999, 998},
	}
	for _, tc := range cases {
		got := ComputeLimitPrice(tc.side, tc.m, tc.min)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestBuildLimitBuy(t *testing.T) {
	spec, err := Build(Request{
		Symbol:   "BTCUSDT",
		Type:     types.Limit,
		Intent:   Intent{Side: types.Buy, Mode: ByQuantity, Quantity: 0.0105},
		Market:   Market{Close: 27123.45, Volume: 1, AvgVolume: 2, RSI: 50},
		Filters:  types.SymbolFilters{TickSize: 0.01, StepSize: 0.001},
		Discount: 0.002,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 27123.45 * 1.002 = 27177.69690 -> 27177.69
	if spec.Price != 27177.69 {
		t.Fatalf("price = %v", spec.Price)
	}
	if spec.Quantity != 0.008 {
		t.Fatalf("quantity = %v", spec.Quantity)
	}
	if spec.Side != types.Buy || spec.Type != types.Limit || spec.Symbol != "BTCUSDT" {
		t.Fatalf("unexpected spec %+v", spec)
	}
}

func TestBuildByValueUsesLimitPrice(t *testing.T) {
	spec, err := Build(Request{
		Type:    types.Limit,
		Intent:  Intent{Side: types.Buy, Mode: ByValue, Value: 100},
		Market:  Market{Close: 100, RSI: 10},
		Filters: types.SymbolFilters{TickSize: 0.1, StepSize: 0.01},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// limit 99.8, 100/99.8 = 1.002 -> 1.00
	if spec.Price != 99.8 || spec.Quantity != 1 {
		t.Fatalf("unexpected spec %+v", spec)
	}
}

func TestBuildMarketSell(t *testing.T) {
	spec, err := Build(Request{
		Type:    types.Market,
		Intent:  Intent{Side: types.Sell, Mode: ByQuantity, Quantity: 0.123456},
		Market:  Market{Close: 100},
		Filters: types.SymbolFilters{TickSize: 0.01, StepSize: 0.0001},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Price != 0 || spec.Quantity != 0.1234 || spec.Type != types.Market {
		t.Fatalf("unexpected spec %+v", spec)
	}
}

func TestBuildZeroQuantity(t *testing.T) {
	_, err := Build(Request{
		Type:    types.Limit,
		Intent:  Intent{Side: types.Buy, Mode: ByQuantity, Quantity: 0.0009},
		Market:  Market{Close: 100, RSI: 50},
		Filters: types.SymbolFilters{TickSize: 0.01, StepSize: 0.001},
	})
	var zq *ZeroQuantityError
	if !errors.As(err, &zq) {
		t.Fatalf("expected ZeroQuantityError, got %v", err)
	}
	if zq.Side != types.Buy || zq.Step != 0.001 {
		t.Fatalf("unexpected error fields %+v", zq)
	}
}
