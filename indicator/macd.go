package indicator

// MACDResult holds the three index-aligned MACD series.
type MACDResult struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// MACD subtracts the slow EMA from the fast EMA at every index, smooths
// the difference into the signal line and derives the histogram. All three
// series have the same length as closes.
func MACD(closes []float64, fastWindow, slowWindow, signalWindow int) (MACDResult, error) {
	if len(closes) < slowWindow {
		return MACDResult{}, insufficient("macd", slowWindow, len(closes))
	}
	fast, err := EMA(closes, fastWindow)
	if err != nil {
		return MACDResult{}, err
	}
	slow, err := EMA(closes, slowWindow)
	if err != nil {
		return MACDResult{}, err
	}
	line := make([]float64, len(closes))
	for i := range line {
		line[i] = fast[i] - slow[i]
	}
	signal, err := EMA(line, signalWindow)
	if err != nil {
		return MACDResult{}, err
	}
	hist := make([]float64, len(line))
	for i := range hist {
		hist[i] = line[i] - signal[i]
	}
	return MACDResult{Line: line, Signal: signal, Histogram: hist}, nil
}
