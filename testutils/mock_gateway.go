package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/evdnx/gotrade/exchange"
	"github.com/evdnx/gotrade/types"
)

// Operation names accepted by MockGateway.SetError.
const (
	OpCandles = "candles"
	OpFilters = "filters"
	OpBalance = "balance"
	OpOpen    = "open_orders"
	OpHistory = "history"
	OpSubmit  = "submit"
	OpCancel  = "cancel"
)

// MockGateway implements exchange.Gateway in-memory. Submitted orders are
// captured for assertions and, with FillOnSubmit, filled at their price
// like the paper exchange.
type MockGateway struct {
	mu           sync.RWMutex
	base, quote  string
	candles      []types.Candle
	filters      types.SymbolFilters
	balances     map[string]float64
	open         []types.Order
	history      []types.Order
	errs         map[string]error
	submitted    []types.OrderSpec
	cancelled    []int64
	nextID       int64
	FillOnSubmit bool
}

var _ exchange.Gateway = (*MockGateway)(nil)

// NewMockGateway creates a gateway for base/quote with the given filters.
func NewMockGateway(base, quote string, filters types.SymbolFilters) *MockGateway {
	return &MockGateway{
		base:     base,
		quote:    quote,
		filters:  filters,
		balances: make(map[string]float64),
		errs:     make(map[string]error),
		nextID:   1,
	}
}

func (m *MockGateway) SetCandles(c []types.Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candles = append([]types.Candle(nil), c...)
}

func (m *MockGateway) SetBalance(asset string, free float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[asset] = free
}

func (m *MockGateway) SetOpenOrders(o []types.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = append([]types.Order(nil), o...)
}

func (m *MockGateway) SetHistory(o []types.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append([]types.Order(nil), o...)
}

// SetError makes every call of op fail with err (nil clears it).
func (m *MockGateway) SetError(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, op)
		return
	}
	m.errs[op] = err
}

func (m *MockGateway) FetchCandles(_ context.Context, _, _ string, limit int) ([]types.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.errs[OpCandles]; err != nil {
		return nil, err
	}
	out := m.candles
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return append([]types.Candle(nil), out...), nil
}

func (m *MockGateway) FetchSymbolFilters(context.Context, string) (types.SymbolFilters, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.errs[OpFilters]; err != nil {
		return types.SymbolFilters{}, err
	}
	return m.filters, nil
}

func (m *MockGateway) FetchFreeBalance(_ context.Context, asset string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.errs[OpBalance]; err != nil {
		return 0, err
	}
	return m.balances[asset], nil
}

func (m *MockGateway) FetchOpenOrders(context.Context, string) ([]types.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.errs[OpOpen]; err != nil {
		return nil, err
	}
	return append([]types.Order(nil), m.open...), nil
}

func (m *MockGateway) FetchOrderHistory(_ context.Context, _ string, limit int) ([]types.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.errs[OpHistory]; err != nil {
		return nil, err
	}
	out := m.history
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return append([]types.Order(nil), out...), nil
}

func (m *MockGateway) SubmitOrder(_ context.Context, spec types.OrderSpec) (types.OrderAck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs[OpSubmit]; err != nil {
		return types.OrderAck{}, err
	}
	m.submitted = append(m.submitted, spec)
	id := m.nextID
	m.nextID++

	price := spec.Price
	if price == 0 && len(m.candles) > 0 {
		price = m.candles[len(m.candles)-1].Close
	}
	ack := types.OrderAck{
		Symbol:        spec.Symbol,
		OrderID:       id,
		ClientOrderID: spec.ClientOrderID,
		Side:          spec.Side,
		Type:          spec.Type,
		Status:        types.StatusNew,
		Price:         spec.Price,
		OrigQty:       spec.Quantity,
		TransactTime:  time.Now(),
	}
	if !m.FillOnSubmit {
		return ack, nil
	}
	cost := price * spec.Quantity
	if spec.Side == types.Buy {
		m.balances[m.quote] -= cost
		m.balances[m.base] += spec.Quantity
	} else {
		m.balances[m.base] -= spec.Quantity
		m.balances[m.quote] += cost
	}
	ack.Status = types.StatusFilled
	ack.ExecutedQty = spec.Quantity
	ack.CumulativeQuoteQty = cost
	m.history = append(m.history, types.Order{
		Symbol:             spec.Symbol,
		OrderID:            id,
		Side:               spec.Side,
		Type:               spec.Type,
		Status:             types.StatusFilled,
		Price:              price,
		OrigQty:            spec.Quantity,
		ExecutedQty:        spec.Quantity,
		CumulativeQuoteQty: cost,
		Time:               ack.TransactTime,
	})
	return ack, nil
}

func (m *MockGateway) CancelOrder(_ context.Context, _ string, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs[OpCancel]; err != nil {
		return err
	}
	m.cancelled = append(m.cancelled, orderID)
	kept := m.open[:0]
	for _, o := range m.open {
		if o.OrderID != orderID {
			kept = append(kept, o)
		}
	}
	m.open = kept
	return nil
}

// Submitted returns a copy of all submitted orders.
func (m *MockGateway) Submitted() []types.OrderSpec {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]types.OrderSpec(nil), m.submitted...)
}

// Cancelled returns the ids of all cancelled orders.
func (m *MockGateway) Cancelled() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int64(nil), m.cancelled...)
}
