package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/evdnx/gotrade/config"
	"github.com/evdnx/gotrade/exchange"
	"github.com/evdnx/gotrade/indicator"
	"github.com/evdnx/gotrade/logger"
	"github.com/evdnx/gotrade/metrics"
	"github.com/evdnx/gotrade/notify"
	"github.com/evdnx/gotrade/risk"
	"github.com/evdnx/gotrade/sizing"
	"github.com/evdnx/gotrade/store"
	"github.com/evdnx/gotrade/strategy"
	"github.com/evdnx/gotrade/types"
)

// Stages a cycle passes through. CycleOutcome.Stage holds the last one
// reached, so an aborted cycle tells how far it got.
const (
	StageFetch      = "fetch"
	StageStopLoss   = "stop_loss"
	StageIndicators = "indicators"
	StageStrategy   = "strategy"
	StageSizing     = "sizing"
	StageOrder      = "order"
	StageRefresh    = "refresh"
	StageDone       = "done"
)

// CycleOutcome is what one trading cycle reports to the scheduler.
type CycleOutcome struct {
	Signal types.Signal
	Traded bool
	Err    error
	Kind   string // taxonomy kind of Err, empty on success
	Stage  string

	StopLossEvaluated bool
	StopLossTriggered bool

	Decision strategy.Decision
	Order    *types.OrderSpec
	Ack      *types.OrderAck
	Position risk.PositionState
	Bundle   *indicator.Bundle

	StartedAt  time.Time
	FinishedAt time.Time
}

// PositionStore persists the position between restarts.
type PositionStore interface {
	Save(ctx context.Context, symbol string, p risk.PositionState) error
	Load(ctx context.Context, symbol string) (risk.PositionState, bool, error)
}

// Journal records finished cycles and submitted orders.
type Journal interface {
	RecordCycle(ctx context.Context, c store.CycleRecord) error
	RecordOrder(ctx context.Context, a types.OrderAck) error
}

// Deps are the collaborators of a Trader. Gateway and Chain are required.
type Deps struct {
	Gateway   exchange.Gateway
	Chain     *strategy.Chain
	Log       logger.Logger
	Notifier  notify.Notifier
	Positions PositionStore
	Journal   Journal
}

// Trader runs trading cycles for one symbol. Cycles never overlap; the
// position state is owned by the running cycle.
type Trader struct {
	cfg       *config.Config
	gw        exchange.Gateway
	chain     *strategy.Chain
	log       logger.Logger
	notifier  notify.Notifier
	positions PositionStore
	journal   Journal
	windows   indicator.Windows

	// injectable for tests
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	cycleMu sync.Mutex

	mu      sync.RWMutex
	pos     risk.PositionState
	last    CycleOutcome
	hasLast bool
}

// NewTrader validates cfg and wires the trader.
func NewTrader(cfg *config.Config, deps Deps) (*Trader, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if deps.Gateway == nil || deps.Chain == nil {
		return nil, fmt.Errorf("%w: gateway and strategy chain are required", ErrInvalidConfig)
	}
	t := &Trader{
		cfg:       cfg,
		gw:        deps.Gateway,
		chain:     deps.Chain,
		log:       deps.Log,
		notifier:  deps.Notifier,
		positions: deps.Positions,
		journal:   deps.Journal,
		windows:   indicator.WindowsFrom(cfg.Indicator),
		sleep:     sleepCtx,
		now:       time.Now,
	}
	if t.log == nil {
		t.log = logger.Nop()
	}
	if t.notifier == nil {
		t.notifier = notify.LogNotifier{Log: t.log}
	}
	return t, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Restore loads the persisted position, if any.
func (t *Trader) Restore(ctx context.Context) error {
	if t.positions == nil {
		return nil
	}
	p, ok, err := t.positions.Load(ctx, t.cfg.Trade.Symbol)
	if err != nil {
		return err
	}
	if ok {
		t.mu.Lock()
		t.pos = p
		t.mu.Unlock()
		t.log.Info("position_restored",
			logger.String("symbol", t.cfg.Trade.Symbol),
			logger.Bool("is_long", p.IsLong),
			logger.Float64("last_buy_price", p.LastBuyPrice),
		)
	}
	return nil
}

// Position returns a copy of the current position state.
func (t *Trader) Position() risk.PositionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pos
}

// Last returns the outcome of the most recent cycle.
func (t *Trader) Last() (CycleOutcome, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last, t.hasLast
}

// snapshot is the account state fetched at the start of a cycle.
type snapshot struct {
	filters types.SymbolFilters
	candles []types.Candle
	balance float64 // free base asset
}

// RunCycle fetches fresh data, evaluates the stop-loss, runs the strategy
// chain and submits at most one order. Errors abort the cycle and are
// reported in the outcome, never returned.
func (t *Trader) RunCycle(ctx context.Context) CycleOutcome {
	t.cycleMu.Lock()
	defer t.cycleMu.Unlock()

	t.mu.RLock()
	pos := t.pos
	t.mu.RUnlock()

	out := CycleOutcome{Signal: types.SignalHold, Stage: StageFetch, StartedAt: t.now()}
	t.log.Debug("cycle_started", logger.String("symbol", t.cfg.Trade.Symbol))

	err := t.cycle(ctx, &pos, &out)
	if err != nil {
		out.Err = err
		out.Kind = Kind(err)
		if out.Kind == KindZeroQuantity {
			out.Signal = types.SignalHold
		}
	} else {
		out.Stage = StageDone
	}
	out.Position = pos
	out.FinishedAt = t.now()

	t.mu.Lock()
	t.pos = pos
	t.last, t.hasLast = out, true
	t.mu.Unlock()

	t.finish(ctx, out)
	return out
}

func (t *Trader) cycle(ctx context.Context, pos *risk.PositionState, out *CycleOutcome) error {
	snap, err := t.refresh(ctx, pos)
	if err != nil {
		return err
	}
	closes := types.Closes(snap.candles)

	out.Stage = StageStopLoss
	out.StopLossEvaluated = true
	if risk.EvaluateStopLoss(*pos, closes, t.cfg.Risk.StopLossPct) {
		out.StopLossTriggered = true
		metrics.StopLossTriggered.Inc()
		t.log.Warn("stop_loss_triggered",
			logger.String("symbol", t.cfg.Trade.Symbol),
			logger.Float64("last_buy_price", pos.LastBuyPrice),
			logger.Float64("stop_price", risk.StopLossPrice(pos.LastBuyPrice, t.cfg.Risk.StopLossPct)),
			logger.Float64("close", closes[len(closes)-1]),
			logger.Float64("prev_close", closes[len(closes)-2]),
		)
		out.Signal = types.SignalSell
		m := sizing.Market{Close: closes[len(closes)-1]}
		return t.sellAll(ctx, pos, snap, types.Market, m, 0, nil, notify.ReasonStopLoss, out)
	}

	out.Stage = StageIndicators
	bundle, err := indicator.Compute(snap.candles, t.windows)
	if err != nil {
		return err
	}
	out.Bundle = bundle
	if bundle.HasReferenceRSI {
		t.log.Debug("rsi_cross_check",
			logger.Float64("rsi", bundle.LastRSI()),
			logger.Float64("reference_rsi", bundle.ReferenceRSI),
		)
	}

	out.Stage = StageStrategy
	d := t.chain.Decide(bundle)
	out.Decision = d
	out.Signal = d.Signal

	m := sizing.Market{Close: bundle.Close, Volume: bundle.Volume, AvgVolume: bundle.AvgVolume, RSI: bundle.LastRSI()}
	switch {
	case d.Signal == types.SignalBuy && !pos.IsLong:
		return t.buy(ctx, pos, snap, m, bundle, out)
	case d.Signal == types.SignalSell && pos.IsLong:
		minSell := risk.MinSellPrice(pos.LastBuyPrice, t.cfg.Risk.AcceptableLossPct)
		return t.sellAll(ctx, pos, snap, types.Limit, m, minSell, bundle, notify.ReasonSignal, out)
	default:
		t.log.Info("no_action",
			logger.String("signal", string(d.Signal)),
			logger.Bool("is_long", pos.IsLong),
		)
		return nil
	}
}

// refresh reads filters, candles, balance and order history and updates
// the position from them.
func (t *Trader) refresh(ctx context.Context, pos *risk.PositionState) (snapshot, error) {
	tc := t.cfg.Trade
	var snap snapshot
	var err error
	if snap.filters, err = t.gw.FetchSymbolFilters(ctx, tc.Symbol); err != nil {
		return snap, err
	}
	if snap.candles, err = t.gw.FetchCandles(ctx, tc.Symbol, tc.Interval, tc.CandleLimit); err != nil {
		return snap, err
	}
	if len(snap.candles) > 0 {
		metrics.LastClose.Set(snap.candles[len(snap.candles)-1].Close)
	}
	if err := t.refreshPosition(ctx, pos, &snap); err != nil {
		return snap, err
	}
	return snap, nil
}

func (t *Trader) refreshPosition(ctx context.Context, pos *risk.PositionState, snap *snapshot) error {
	tc := t.cfg.Trade
	balance, err := t.gw.FetchFreeBalance(ctx, tc.BaseAsset)
	if err != nil {
		return err
	}
	history, err := t.gw.FetchOrderHistory(ctx, tc.Symbol, tc.HistoryLimit)
	if err != nil {
		return err
	}
	snap.balance = balance
	pos.IsLong = risk.RefreshPosition(balance, snap.filters.StepSize)
	for _, w := range pos.RefreshLastFillPrices(history) {
		t.log.Debug("no_executed_order", logger.String("symbol", tc.Symbol), logger.Err(w))
	}

	metrics.FreeBalance.WithLabelValues(tc.BaseAsset).Set(balance)
	if pos.IsLong {
		metrics.PositionLong.Set(1)
	} else {
		metrics.PositionLong.Set(0)
	}
	t.log.Info("position_refreshed",
		logger.String("symbol", tc.Symbol),
		logger.Bool("is_long", pos.IsLong),
		logger.Float64("free_balance", balance),
		logger.Float64("last_buy_price", pos.LastBuyPrice),
		logger.Float64("last_sell_price", pos.LastSellPrice),
	)
	return nil
}

func (t *Trader) intent(side types.Side) sizing.Intent {
	if t.cfg.Trade.TradedQty > 0 {
		return sizing.Intent{Side: side, Mode: sizing.ByQuantity, Quantity: t.cfg.Trade.TradedQty}
	}
	return sizing.Intent{Side: side, Mode: sizing.ByValue, Value: t.cfg.Trade.TradedValue}
}

func (t *Trader) buy(ctx context.Context, pos *risk.PositionState, snap snapshot, m sizing.Market, b *indicator.Bundle, out *CycleOutcome) error {
	out.Stage = StageSizing
	open, err := t.gw.FetchOpenOrders(ctx, t.cfg.Trade.Symbol)
	if err != nil {
		return err
	}
	if pos.ReconcileOpenOrders(open, types.Buy) {
		t.log.Info("open_buy_orders_reconciled",
			logger.Float64("partial_quantity_discount", pos.PartialQuantityDiscount),
			logger.Float64("last_buy_price", pos.LastBuyPrice),
		)
	}
	spec, err := sizing.Build(sizing.Request{
		Symbol:   t.cfg.Trade.Symbol,
		Type:     types.Limit,
		Intent:   t.intent(types.Buy),
		Market:   m,
		Filters:  snap.filters,
		Discount: pos.PartialQuantityDiscount,
	})
	if err != nil {
		return err
	}

	out.Stage = StageOrder
	if err := t.cancelAll(ctx); err != nil {
		return err
	}
	return t.submit(ctx, pos, &snap, spec, b, notify.ReasonSignal, out)
}

// sellAll sells the whole free balance. The quantity is re-read after the
// open orders are cancelled, since cancelling frees locked balance.
func (t *Trader) sellAll(ctx context.Context, pos *risk.PositionState, snap snapshot, typ types.OrderType,
	m sizing.Market, minSell float64, b *indicator.Bundle, reason string, out *CycleOutcome) error {
	out.Stage = StageSizing
	req := sizing.Request{
		Symbol:       t.cfg.Trade.Symbol,
		Type:         typ,
		Intent:       sizing.Intent{Side: types.Sell, Mode: sizing.ByQuantity, Quantity: snap.balance},
		Market:       m,
		Filters:      snap.filters,
		MinSellPrice: minSell,
	}
	spec, err := sizing.Build(req)
	if err != nil {
		return err
	}

	out.Stage = StageOrder
	if err := t.cancelAll(ctx); err != nil {
		return err
	}
	balance, err := t.gw.FetchFreeBalance(ctx, t.cfg.Trade.BaseAsset)
	if err != nil {
		return err
	}
	if balance > snap.balance {
		req.Intent.Quantity = balance
		if spec, err = sizing.Build(req); err != nil {
			return err
		}
	}
	err = t.submit(ctx, pos, &snap, spec, b, reason, out)
	if err == nil && reason == notify.ReasonStopLoss {
		pos.IsLong = false
	}
	return err
}

func (t *Trader) cancelAll(ctx context.Context) error {
	n, err := exchange.CancelAll(ctx, t.gw, t.cfg.Trade.Symbol)
	if err != nil {
		return fmt.Errorf("cancel open orders: %w", err)
	}
	if n > 0 {
		t.log.Info("orders_cancelled", logger.String("symbol", t.cfg.Trade.Symbol), logger.Int("count", n))
	}
	return t.sleep(ctx, t.cfg.Trade.SettleDelay)
}

// submit sends spec, reports it and refreshes the position once the
// exchange had time to settle.
func (t *Trader) submit(ctx context.Context, pos *risk.PositionState, snap *snapshot, spec types.OrderSpec,
	b *indicator.Bundle, reason string, out *CycleOutcome) error {
	spec.ClientOrderID = exchange.NewClientOrderID()
	spec.Comment = reason
	out.Order = &spec

	ack, err := t.gw.SubmitOrder(ctx, spec)
	if err != nil {
		return err
	}
	out.Ack = &ack
	out.Traded = true
	metrics.OrdersSubmitted.WithLabelValues(string(ack.Side), string(ack.Type)).Inc()
	t.logAck(ack)

	if t.journal != nil {
		if err := t.journal.RecordOrder(ctx, ack); err != nil {
			t.log.Warn("journal_order_failed", logger.Int64("order_id", ack.OrderID), logger.Err(err))
		}
	}
	report := notify.Report{
		Symbol:   t.cfg.Trade.Symbol,
		Reason:   reason,
		Spec:     spec,
		Ack:      ack,
		Bundle:   b,
		Position: *pos,
		Filters:  snap.filters,
		Time:     t.now(),
	}
	if err := t.notifier.Notify(ctx, report); err != nil {
		t.log.Warn("notify_failed", logger.Int64("order_id", ack.OrderID), logger.Err(err))
	}

	if err := t.sleep(ctx, t.cfg.Trade.SettleDelay); err != nil {
		return err
	}
	out.Stage = StageRefresh
	if err := t.refreshPosition(ctx, pos, snap); err != nil {
		return fmt.Errorf("refresh after order: %w", err)
	}
	return nil
}

func (t *Trader) logAck(a types.OrderAck) {
	t.log.Info("order_submitted",
		logger.String("symbol", a.Symbol),
		logger.Int64("order_id", a.OrderID),
		logger.String("client_order_id", a.ClientOrderID),
		logger.String("side", string(a.Side)),
		logger.String("type", string(a.Type)),
		logger.String("status", string(a.Status)),
		logger.Float64("price", a.Price),
		logger.Float64("orig_qty", a.OrigQty),
		logger.Float64("executed_qty", a.ExecutedQty),
		logger.Float64("cumulative_quote_qty", a.CumulativeQuoteQty),
		logger.Any("transact_time", a.TransactTime),
	)
	for i, f := range a.Fills {
		t.log.Debug("order_fill",
			logger.Int64("order_id", a.OrderID),
			logger.Int("fill", i),
			logger.Float64("price", f.Price),
			logger.Float64("qty", f.Qty),
			logger.Float64("commission", f.Commission),
			logger.String("commission_asset", f.CommissionAsset),
		)
	}
}

// finish logs, counts and persists a completed cycle.
func (t *Trader) finish(ctx context.Context, out CycleOutcome) {
	symbol := t.cfg.Trade.Symbol
	fields := []logger.Field{
		logger.String("symbol", symbol),
		logger.String("signal", string(out.Signal)),
		logger.Bool("traded", out.Traded),
		logger.String("stage", out.Stage),
		logger.Bool("stop_loss_evaluated", out.StopLossEvaluated),
		logger.Duration("took", out.FinishedAt.Sub(out.StartedAt)),
	}
	switch {
	case out.Err != nil:
		metrics.Cycles.WithLabelValues("error").Inc()
		metrics.CycleErrors.WithLabelValues(out.Kind).Inc()
		fields = append(fields, logger.String("kind", out.Kind), logger.Err(out.Err))
		if out.Kind == KindZeroQuantity {
			t.log.Warn("cycle_skipped_order", fields...)
		} else {
			t.log.Error("cycle_aborted", fields...)
		}
	case out.Traded:
		metrics.Cycles.WithLabelValues("traded").Inc()
		t.log.Info("cycle_finished", fields...)
	default:
		metrics.Cycles.WithLabelValues("idle").Inc()
		t.log.Info("cycle_finished", fields...)
	}

	// persist even when the cycle context was cancelled mid-way
	pctx := context.WithoutCancel(ctx)
	if t.positions != nil {
		if err := t.positions.Save(pctx, symbol, out.Position); err != nil {
			t.log.Warn("position_save_failed", logger.Err(err))
		}
	}
	if t.journal != nil {
		rec := store.CycleRecord{
			Symbol:            symbol,
			Signal:            string(out.Signal),
			Strategy:          out.Decision.Strategy,
			Traded:            out.Traded,
			StopLossEvaluated: out.StopLossEvaluated,
			StopLossTriggered: out.StopLossTriggered,
			ErrorKind:         out.Kind,
			StartedAt:         out.StartedAt,
			FinishedAt:        out.FinishedAt,
		}
		if out.Err != nil {
			rec.Error = out.Err.Error()
		}
		if err := t.journal.RecordCycle(pctx, rec); err != nil && !errors.Is(err, context.Canceled) {
			t.log.Warn("journal_cycle_failed", logger.Err(err))
		}
	}
}
