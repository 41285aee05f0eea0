package indicator

// RSI computes the relative strength index of closes. Gains and losses are
// smoothed with EMA(window). When the average loss is zero the value is 100
// instead of a division by zero.
func RSI(closes []float64, window int) ([]float64, error) {
	if window <= 0 || len(closes) < window {
		return nil, insufficient("rsi", max(window, 1), len(closes))
	}
	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}
	avgGain, err := EMA(gains, window)
	if err != nil {
		return nil, err
	}
	avgLoss, err := EMA(losses, window)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(closes))
	for i := range out {
		if avgLoss[i] == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain[i] / avgLoss[i]
		out[i] = 100 - 100/(1+rs)
	}
	return out, nil
}
