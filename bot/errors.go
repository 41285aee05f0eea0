package bot

import (
	"errors"

	"github.com/evdnx/gotrade/exchange"
	"github.com/evdnx/gotrade/indicator"
	"github.com/evdnx/gotrade/sizing"
)

// ErrInvalidConfig wraps configuration problems found while wiring a trader.
var ErrInvalidConfig = errors.New("invalid configuration")

// Error kinds reported in CycleOutcome.Kind, logs and metrics.
const (
	KindInsufficientData = "insufficient_data"
	KindGateway          = "gateway"
	KindZeroQuantity     = "zero_quantity"
	KindConfig           = "config"
	KindUnknown          = "unknown"
)

// Kind classifies err into the error taxonomy. It returns "" for nil.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var insufficient *indicator.InsufficientDataError
	var gateway *exchange.GatewayError
	var zero *sizing.ZeroQuantityError
	switch {
	case errors.As(err, &insufficient):
		return KindInsufficientData
	case errors.As(err, &gateway):
		return KindGateway
	case errors.As(err, &zero):
		return KindZeroQuantity
	case errors.Is(err, ErrInvalidConfig):
		return KindConfig
	default:
		return KindUnknown
	}
}
