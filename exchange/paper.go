package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/evdnx/gotrade/logger"
	"github.com/evdnx/gotrade/types"
)

// PaperExchange is a very simple paper trader: market data comes from a
// real source, orders fill completely at their price (the last close for
// market orders) with no slippage or fees.
type PaperExchange struct {
	market MarketData
	base   string
	quote  string
	log    logger.Logger

	mu        sync.Mutex
	balances  map[string]float64
	history   []types.Order
	lastClose float64
	nextID    int64
	now       func() time.Time
}

// NewPaperExchange starts with startQuote of the quote asset and nothing
// of the base asset.
func NewPaperExchange(market MarketData, base, quote string, startQuote float64, log logger.Logger) *PaperExchange {
	if log == nil {
		log = logger.Nop()
	}
	return &PaperExchange{
		market:   market,
		base:     base,
		quote:    quote,
		log:      log,
		balances: map[string]float64{quote: startQuote},
		nextID:   1,
		now:      time.Now,
	}
}

func (p *PaperExchange) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	candles, err := p.market.FetchCandles(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}
	if len(candles) > 0 {
		p.mu.Lock()
		p.lastClose = candles[len(candles)-1].Close
		p.mu.Unlock()
	}
	return candles, nil
}

func (p *PaperExchange) FetchSymbolFilters(ctx context.Context, symbol string) (types.SymbolFilters, error) {
	return p.market.FetchSymbolFilters(ctx, symbol)
}

func (p *PaperExchange) FetchFreeBalance(_ context.Context, asset string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balances[asset], nil
}

// FetchOpenOrders is always empty: paper orders fill on submission.
func (p *PaperExchange) FetchOpenOrders(context.Context, string) ([]types.Order, error) {
	return nil, nil
}

func (p *PaperExchange) FetchOrderHistory(_ context.Context, symbol string, limit int) ([]types.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []types.Order
	for _, o := range p.history {
		if o.Symbol == symbol {
			out = append(out, o)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (p *PaperExchange) SubmitOrder(_ context.Context, spec types.OrderSpec) (types.OrderAck, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	price := spec.Price
	if spec.Type == types.Market || price == 0 {
		price = p.lastClose
	}
	if spec.Quantity <= 0 || price <= 0 {
		return types.OrderAck{}, &GatewayError{Op: "paper order", Status: 400, Code: -1013, Msg: "Filter failure: quantity or price is zero."}
	}
	cost := price * spec.Quantity
	if spec.Side == types.Buy {
		if cost > p.balances[p.quote] {
			return types.OrderAck{}, &GatewayError{Op: "paper order", Status: 400, Code: -2010, Msg: "Account has insufficient balance for requested action."}
		}
		p.balances[p.quote] -= cost
		p.balances[p.base] += spec.Quantity
	} else {
		if spec.Quantity > p.balances[p.base] {
			return types.OrderAck{}, &GatewayError{Op: "paper order", Status: 400, Code: -2010, Msg: "Account has insufficient balance for requested action."}
		}
		p.balances[p.base] -= spec.Quantity
		p.balances[p.quote] += cost
	}

	now := p.now()
	clientID := spec.ClientOrderID
	if clientID == "" {
		clientID = NewClientOrderID()
	}
	order := types.Order{
		Symbol:             spec.Symbol,
		OrderID:            p.nextID,
		ClientOrderID:      clientID,
		Side:               spec.Side,
		Type:               spec.Type,
		Status:             types.StatusFilled,
		Price:              price,
		OrigQty:            spec.Quantity,
		ExecutedQty:        spec.Quantity,
		CumulativeQuoteQty: cost,
		Time:               now,
	}
	p.nextID++
	p.history = append(p.history, order)

	p.log.Info("paper_fill",
		logger.String("symbol", spec.Symbol),
		logger.String("side", string(spec.Side)),
		logger.Float64("qty", spec.Quantity),
		logger.Float64("price", price),
		logger.Float64("quote_balance", p.balances[p.quote]),
	)
	return types.OrderAck{
		Symbol:             order.Symbol,
		OrderID:            order.OrderID,
		ClientOrderID:      order.ClientOrderID,
		Side:               order.Side,
		Type:               order.Type,
		Status:             order.Status,
		Price:              price,
		OrigQty:            order.OrigQty,
		ExecutedQty:        order.ExecutedQty,
		CumulativeQuoteQty: cost,
		TransactTime:       now,
		Fills:              []types.Fill{{Price: price, Qty: spec.Quantity, CommissionAsset: p.quote}},
	}, nil
}

// CancelOrder always fails: there is never an open paper order.
func (p *PaperExchange) CancelOrder(_ context.Context, _ string, _ int64) error {
	return &GatewayError{Op: "paper cancel", Status: 400, Code: -2011, Msg: "Unknown order sent."}
}
