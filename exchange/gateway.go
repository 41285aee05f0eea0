package exchange

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/evdnx/gotrade/types"
)

// MarketData is the public, unsigned part of an exchange.
type MarketData interface {
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error)
	FetchSymbolFilters(ctx context.Context, symbol string) (types.SymbolFilters, error)
}

// Gateway is everything a trading cycle needs from an exchange.
type Gateway interface {
	MarketData
	FetchFreeBalance(ctx context.Context, asset string) (float64, error)
	FetchOpenOrders(ctx context.Context, symbol string) ([]types.Order, error)
	FetchOrderHistory(ctx context.Context, symbol string, limit int) ([]types.Order, error)
	SubmitOrder(ctx context.Context, spec types.OrderSpec) (types.OrderAck, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) error
}

// GatewayError is any failure talking to the exchange. Status and Code are
// set when the exchange answered; Err when the request never completed.
type GatewayError struct {
	Op     string
	Status int
	Code   int
	Msg    string
	Err    error
}

func (e *GatewayError) Error() string {
	switch {
	case e.Err != nil && e.Status == 0:
		return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("gateway %s: status %d: %v", e.Op, e.Status, e.Err)
	default:
		return fmt.Sprintf("gateway %s: status %d code %d: %s", e.Op, e.Status, e.Code, e.Msg)
	}
}

func (e *GatewayError) Unwrap() error { return e.Err }

// CancelAll cancels every open order on symbol. It keeps going after a
// failed cancel and returns the combined error with the cancelled count.
func CancelAll(ctx context.Context, g Gateway, symbol string) (int, error) {
	open, err := g.FetchOpenOrders(ctx, symbol)
	if err != nil {
		return 0, err
	}
	var errs error
	n := 0
	for _, o := range open {
		if err := g.CancelOrder(ctx, symbol, o.OrderID); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		n++
	}
	return n, errs
}
