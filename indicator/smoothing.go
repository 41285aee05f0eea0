package indicator

import "math"

// EMA smooths series with alpha = 1/window. The first output is the first
// input unchanged; every later output moves toward the input by alpha.
// The result has the same length as the input.
func EMA(series []float64, window int) ([]float64, error) {
	if window <= 0 {
		return nil, insufficient("ema", 1, window)
	}
	out := make([]float64, len(series))
	if len(series) == 0 {
		return out, nil
	}
	alpha := 1.0 / float64(window)
	prev := series[0]
	out[0] = prev
	for i := 1; i < len(series); i++ {
		prev += alpha * (series[i] - prev)
		out[i] = prev
	}
	return out, nil
}

// RollingMean returns the simple mean of each full trailing window, so the
// output has len(series)-window+1 points.
func RollingMean(series []float64, window int) ([]float64, error) {
	if window <= 0 || len(series) < window {
		return nil, insufficient("rolling_mean", max(window, 1), len(series))
	}
	out := make([]float64, 0, len(series)-window+1)
	sum := 0.0
	for i, v := range series {
		sum += v
		if i >= window {
			sum -= series[i-window]
		}
		if i >= window-1 {
			out = append(out, sum/float64(window))
		}
	}
	return out, nil
}

// RollingStdDev returns the sample standard deviation of each full trailing
// window. A window of one point has zero deviation.
func RollingStdDev(series []float64, window int) ([]float64, error) {
	if window <= 0 || len(series) < window {
		return nil, insufficient("rolling_stddev", max(window, 1), len(series))
	}
	out := make([]float64, 0, len(series)-window+1)
	for end := window; end <= len(series); end++ {
		out = append(out, sampleStdDev(series[end-window:end]))
	}
	return out, nil
}

func sampleStdDev(data []float64) float64 {
	n := len(data)
	if n < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(n)
	var ss float64
	for _, v := range data {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// Gradient is the change between the last point and the third from last.
func Gradient(series []float64) (float64, error) {
	if len(series) < 3 {
		return 0, insufficient("gradient", 3, len(series))
	}
	return series[len(series)-1] - series[len(series)-3], nil
}

// Last returns the final element of a series, or 0 when it is empty.
func Last(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// FromEnd returns the element offset places before the last one
// (FromEnd(s, 0) is the last element).
func FromEnd(series []float64, offset int) (float64, bool) {
	idx := len(series) - 1 - offset
	if idx < 0 || idx >= len(series) {
		return 0, false
	}
	return series[idx], true
}
