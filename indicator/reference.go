package indicator

import (
	"fmt"

	"github.com/evdnx/goti"
	"github.com/evdnx/gotrade/types"
)

// ReferenceRSI feeds the history through a goti indicator suite and returns
// its RSI reading. The engine reports it next to its own RSI so operators
// can compare the EMA-smoothed value with a Wilder-style implementation.
func ReferenceRSI(candles []types.Candle) (float64, error) {
	ic := goti.DefaultConfig()
	ic.RSIOverbought = 70
	ic.RSIOversold = 30
	suite, err := goti.NewIndicatorSuiteWithConfig(ic)
	if err != nil {
		return 0, fmt.Errorf("reference rsi: %w", err)
	}
	for _, c := range candles {
		if err := suite.Add(c.High, c.Low, c.Close, c.Volume); err != nil {
			return 0, fmt.Errorf("reference rsi: add candle: %w", err)
		}
	}
	v, err := suite.GetRSI().Calculate()
	if err != nil {
		return 0, fmt.Errorf("reference rsi: %w", err)
	}
	return v, nil
}
