package types

import "time"

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

type OrderType string

const (
	Limit  OrderType = "LIMIT"
	Market OrderType = "MARKET"
)

// OrderStatus mirrors the exchange order lifecycle strings.
type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPendingNew      OrderStatus = "PENDING_NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusRejected        OrderStatus = "REJECTED"
	StatusExpired         OrderStatus = "EXPIRED"
)

// Signal is the discrete outcome of the strategy chain.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Candle represents one OHLCV bar. The last element of a history is the
// current bar, the one before it the previous bar.
type Candle struct {
	OpenTime       time.Time
	CloseTime      time.Time
	Open           float64
	High           float64
	Low            float64
	Close          float64
	Volume         float64
	QuoteVolume    float64
	NumberOfTrades int64
}

// Closes extracts the close series of a history.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Volumes extracts the volume series of a history.
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// Order is an exchange-side order record (open or historical).
type Order struct {
	Symbol             string
	OrderID            int64
	ClientOrderID      string
	Side               Side
	Type               OrderType
	Status             OrderStatus
	Price              float64
	OrigQty            float64
	ExecutedQty        float64
	CumulativeQuoteQty float64
	Time               time.Time
}

// SymbolFilters are the exchange increments for price and quantity.
type SymbolFilters struct {
	TickSize float64
	StepSize float64
}

// OrderSpec is a fully resolved order ready for submission.
type OrderSpec struct {
	Symbol        string
	Side          Side
	Type          OrderType
	Price         float64 // 0 for market orders
	Quantity      float64
	ClientOrderID string
	// meta
	Comment string
}

// Fill is a single execution reported with an order acknowledgement.
type Fill struct {
	Price           float64
	Qty             float64
	Commission      float64
	CommissionAsset string
}

// OrderAck is the exchange acknowledgement of a submitted order.
type OrderAck struct {
	Symbol             string
	OrderID            int64
	ClientOrderID      string
	Side               Side
	Type               OrderType
	Status             OrderStatus
	Price              float64
	OrigQty            float64
	ExecutedQty        float64
	CumulativeQuoteQty float64
	TransactTime       time.Time
	Fills              []Fill
}
