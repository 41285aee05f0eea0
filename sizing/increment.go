package sizing

import "github.com/shopspring/decimal"

// Decimals is the number of fractional digits implied by an increment:
// 0.001 has three, anything >= 1 has none.
func Decimals(increment float64) int32 {
	if increment <= 0 || increment >= 1 {
		return 0
	}
	exp := decimal.NewFromFloat(increment).Exponent()
	if exp >= 0 {
		return 0
	}
	return -exp
}

func adjust(value, increment float64) decimal.Decimal {
	v := decimal.NewFromFloat(value)
	if increment <= 0 {
		return v
	}
	inc := decimal.NewFromFloat(increment)
	return v.Div(inc).Floor().Mul(inc).Round(Decimals(increment))
}

// AdjustToIncrement floors value to a whole multiple of increment and
// rounds half up to the increment's decimals. A non-positive increment
// leaves the value untouched.
func AdjustToIncrement(value, increment float64) float64 {
	return adjust(value, increment).InexactFloat64()
}

// FormatIncrement renders the adjusted value in plain notation with the
// increment's decimals, the way the exchange expects price and quantity.
func FormatIncrement(value, increment float64) string {
	if increment <= 0 {
		return decimal.NewFromFloat(value).String()
	}
	return adjust(value, increment).StringFixed(Decimals(increment))
}
