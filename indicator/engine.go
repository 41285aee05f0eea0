package indicator

import (
	"fmt"

	"github.com/evdnx/gotrade/config"
	"github.com/evdnx/gotrade/types"
)

// Windows are the lookback sizes the engine uses.
type Windows struct {
	MAFast     int
	MASlow     int
	RSI        int
	Volatility int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	Volume     int // average volume; 0 skips it
	Vortex     int // 0 skips the vortex series
	CrossCheck bool
}

// DefaultWindows matches the bot's stock configuration.
func DefaultWindows() Windows {
	return Windows{
		MAFast:     7,
		MASlow:     25,
		RSI:        14,
		Volatility: 20,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		Volume:     20,
	}
}

// WindowsFrom maps the configured windows onto the engine.
func WindowsFrom(c config.IndicatorConfig) Windows {
	return Windows{
		MAFast:     c.MAFast,
		MASlow:     c.MASlow,
		RSI:        c.RSI,
		Volatility: c.Volatility,
		MACDFast:   c.MACDFast,
		MACDSlow:   c.MACDSlow,
		MACDSignal: c.MACDSignal,
		Volume:     c.Volume,
		Vortex:     c.Vortex,
		CrossCheck: c.CrossCheck,
	}
}

// Largest returns the biggest window, i.e. the minimum history length.
func (w Windows) Largest() int {
	m := 0
	for _, v := range []int{w.MAFast, w.MASlow, w.RSI, w.Volatility, w.MACDFast, w.MACDSlow, w.MACDSignal, w.Volume} {
		if v > m {
			m = v
		}
	}
	if w.Vortex > 0 && w.Vortex+1 > m {
		m = w.Vortex + 1
	}
	return m
}

// Bundle is the set of series derived from one candle history. A fresh
// bundle is built every cycle and handed to the strategy chain.
type Bundle struct {
	MAFast         []float64
	MASlow         []float64
	MAFastGradient float64
	MASlowGradient float64
	Volatility     []float64
	RSI            []float64
	MACDLine       []float64
	MACDSignal     []float64
	MACDHistogram  []float64
	VortexPlus     []float64
	VortexMinus    []float64

	Close     float64 // close of the current candle
	PrevClose float64
	Volume    float64 // volume of the current candle
	AvgVolume float64

	ReferenceRSI    float64
	HasReferenceRSI bool
}

// LastRSI is the RSI of the current candle.
func (b *Bundle) LastRSI() float64 { return Last(b.RSI) }

// Compute derives the bundle from candles. Any window longer than the
// history fails with *InsufficientDataError.
func Compute(candles []types.Candle, w Windows) (*Bundle, error) {
	if len(candles) < 2 {
		return nil, insufficient("candles", 2, len(candles))
	}
	closes := types.Closes(candles)
	b := &Bundle{
		Close:     closes[len(closes)-1],
		PrevClose: closes[len(closes)-2],
		Volume:    candles[len(candles)-1].Volume,
	}

	var err error
	if b.MAFast, err = RollingMean(closes, w.MAFast); err != nil {
		return nil, fmt.Errorf("ma fast: %w", err)
	}
	if b.MASlow, err = RollingMean(closes, w.MASlow); err != nil {
		return nil, fmt.Errorf("ma slow: %w", err)
	}
	if b.MAFastGradient, err = Gradient(b.MAFast); err != nil {
		return nil, fmt.Errorf("ma fast gradient: %w", err)
	}
	if b.MASlowGradient, err = Gradient(b.MASlow); err != nil {
		return nil, fmt.Errorf("ma slow gradient: %w", err)
	}
	if b.RSI, err = RSI(closes, w.RSI); err != nil {
		return nil, err
	}
	if b.Volatility, err = RollingStdDev(closes, w.Volatility); err != nil {
		return nil, fmt.Errorf("volatility: %w", err)
	}
	macd, err := MACD(closes, w.MACDFast, w.MACDSlow, w.MACDSignal)
	if err != nil {
		return nil, err
	}
	b.MACDLine, b.MACDSignal, b.MACDHistogram = macd.Line, macd.Signal, macd.Histogram

	if w.Volume > 0 {
		if b.AvgVolume, err = AverageVolume(candles, w.Volume); err != nil {
			return nil, err
		}
	}
	if w.Vortex > 0 {
		if b.VortexPlus, b.VortexMinus, err = Vortex(candles, w.Vortex); err != nil {
			return nil, err
		}
	}
	if w.CrossCheck {
		if v, err := ReferenceRSI(candles); err == nil {
			b.ReferenceRSI, b.HasReferenceRSI = v, true
		}
	}
	return b, nil
}

// AverageVolume is the latest simple mean of the candle volumes.
func AverageVolume(candles []types.Candle, window int) (float64, error) {
	avg, err := RollingMean(types.Volumes(candles), window)
	if err != nil {
		return 0, fmt.Errorf("average volume: %w", err)
	}
	return Last(avg), nil
}
