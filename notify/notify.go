package notify

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/evdnx/gotrade/indicator"
	"github.com/evdnx/gotrade/logger"
	"github.com/evdnx/gotrade/risk"
	"github.com/evdnx/gotrade/types"
)

// Reason values for Report.Reason.
const (
	ReasonSignal   = "signal"
	ReasonStopLoss = "stop_loss"
)

// Report is what a notifier gets after an order was submitted.
type Report struct {
	Symbol   string
	Reason   string
	Spec     types.OrderSpec
	Ack      types.OrderAck
	Bundle   *indicator.Bundle // nil when the order was sent before indicators ran
	Position risk.PositionState
	Filters  types.SymbolFilters
	Time     time.Time
}

// Notifier delivers order reports to a human.
type Notifier interface {
	Notify(ctx context.Context, r Report) error
}

// LogNotifier writes reports to the structured log.
type LogNotifier struct {
	Log logger.Logger
}

func (n LogNotifier) Notify(_ context.Context, r Report) error {
	fields := []logger.Field{
		logger.String("symbol", r.Symbol),
		logger.String("reason", r.Reason),
		logger.String("side", string(r.Ack.Side)),
		logger.String("type", string(r.Ack.Type)),
		logger.String("status", string(r.Ack.Status)),
		logger.Int64("order_id", r.Ack.OrderID),
		logger.Float64("price", r.Spec.Price),
		logger.Float64("qty", r.Spec.Quantity),
		logger.Float64("last_buy_price", r.Position.LastBuyPrice),
		logger.Float64("last_sell_price", r.Position.LastSellPrice),
	}
	if r.Bundle != nil {
		fields = append(fields,
			logger.Float64("ma_fast", indicator.Last(r.Bundle.MAFast)),
			logger.Float64("ma_slow", indicator.Last(r.Bundle.MASlow)),
			logger.Float64("rsi", r.Bundle.LastRSI()),
		)
	}
	n.Log.Info("order_report", fields...)
	return nil
}

// Multi fans a report out to several notifiers and combines their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, r Report) error {
	var err error
	for _, n := range m {
		err = multierr.Append(err, n.Notify(ctx, r))
	}
	return err
}
