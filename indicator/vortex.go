package indicator

import (
	"math"

	"github.com/evdnx/gotrade/types"
)

// Vortex computes VI+ and VI- over a trailing window. Each point needs the
// previous bar, so the output has len(candles)-window points.
func Vortex(candles []types.Candle, window int) (plus, minus []float64, err error) {
	if window <= 0 || len(candles) < window+1 {
		return nil, nil, insufficient("vortex", window+1, len(candles))
	}
	n := len(candles)
	vmPlus := make([]float64, n)
	vmMinus := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		cur, prev := candles[i], candles[i-1]
		vmPlus[i] = math.Abs(cur.High - prev.Low)
		vmMinus[i] = math.Abs(cur.Low - prev.High)
		tr[i] = math.Max(cur.High-cur.Low,
			math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))
	}
	plus = make([]float64, 0, n-window)
	minus = make([]float64, 0, n-window)
	for end := window + 1; end <= n; end++ {
		var sp, sm, st float64
		for i := end - window; i < end; i++ {
			sp += vmPlus[i]
			sm += vmMinus[i]
			st += tr[i]
		}
		if st == 0 {
			plus = append(plus, 0)
			minus = append(minus, 0)
			continue
		}
		plus = append(plus, sp/st)
		minus = append(minus, sm/st)
	}
	return plus, minus, nil
}
