package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gotrade_cycles_total",
			Help: "Trading cycles run, by outcome (traded, idle, error).",
		},
		[]string{"outcome"},
	)

	CycleErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gotrade_cycle_errors_total",
			Help: "Aborted cycles by error kind.",
		},
		[]string{"kind"},
	)

	Signals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gotrade_signals_total",
			Help: "Signals emitted by the strategy chain (by strategy and signal).",
		},
		[]string{"strategy", "signal"},
	)

	OrdersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gotrade_orders_submitted_total",
			Help: "Total number of orders submitted (by side and type).",
		},
		[]string{"side", "type"},
	)

	StopLossTriggered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gotrade_stop_loss_triggered_total",
			Help: "Times the stop-loss sentinel forced an exit.",
		},
	)

	PositionLong = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gotrade_position_long",
			Help: "1 while holding the traded asset, 0 while flat.",
		},
	)

	FreeBalance = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gotrade_free_balance",
			Help: "Free balance per asset as of the last refresh.",
		},
		[]string{"asset"},
	)

	LastClose = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gotrade_last_close",
			Help: "Close of the most recent candle.",
		},
	)
)

func init() {
	prometheus.MustRegister(Cycles, CycleErrors, Signals, OrdersSubmitted,
		StopLossTriggered, PositionLong, FreeBalance, LastClose)
}
