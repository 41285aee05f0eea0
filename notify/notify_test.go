package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/evdnx/gotrade/config"
	"github.com/evdnx/gotrade/indicator"
	"github.com/evdnx/gotrade/risk"
	"github.com/evdnx/gotrade/testutils"
	"github.com/evdnx/gotrade/types"
)

func buildReport() Report {
	return Report{
		Symbol: "BTCUSDT",
		Reason: ReasonSignal,
		Spec:   types.OrderSpec{Symbol: "BTCUSDT", Side: types.Buy, Type: types.Limit, Price: 27177.69, Quantity: 0.008},
		Ack: types.OrderAck{
			OrderID: 28, Side: types.Buy, Type: types.Limit, Status: types.StatusNew,
			TransactTime: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		},
		Bundle: &indicator.Bundle{
			MAFast: []float64{27000, 27100.123}, MASlow: []float64{27050, 27050.5},
			MAFastGradient: 12, MASlowGradient: -1, RSI: []float64{50, 75.456},
		},
		Position: risk.PositionState{LastBuyPrice: 26000, LastSellPrice: 0.00001},
		Filters:  types.SymbolFilters{TickSize: 0.01, StepSize: 0.00001},
	}
}

func TestRenderOrder(t *testing.T) {
	html, err := RenderOrder(buildReport())
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	for _, want := range []string{
		"BUY LIMIT order sent for BTCUSDT",
		"<td>27177.69</td>",
		"<td>0.00800</td>",
		"27100.12 (rising)",
		"27050.50 (falling)",
		"75.46 (overbought)",
		"<td>26000.00</td>",
		"<td>0.00</td>",
		"2024-05-01 12:00:00",
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("rendered html misses %q", want)
		}
	}
}

func TestRenderOrderWithoutIndicators(t *testing.T) {
	r := buildReport()
	r.Bundle = nil
	html, err := RenderOrder(r)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if strings.Contains(html, "<h2>Indicators</h2>") {
		t.Fatalf("indicator table should be omitted")
	}
}

func TestRSIConditionAndDirection(t *testing.T) {
	if RSICondition(71) != "overbought" || RSICondition(29) != "oversold" || RSICondition(70) != "normal" {
		t.Fatalf("unexpected rsi conditions")
	}
	if Direction(0) != "flat" || Direction(-0.1) != "falling" || Direction(3) != "rising" {
		t.Fatalf("unexpected directions")
	}
}

func TestSMTPNotifierSends(t *testing.T) {
	n := NewSMTPNotifier(config.MailConfig{
		Host: "smtp.example.com", Port: 587, Username: "bot", Password: "pw",
		From: "bot@example.com", Receivers: []string{"a@example.com", "b@example.com"},
	})
	var gotAddr string
	var gotTo []string
	var gotMsg string
	n.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}
	if err := n.Notify(context.Background(), buildReport()); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if gotAddr != "smtp.example.com:587" || len(gotTo) != 2 {
		t.Fatalf("unexpected addr/receivers %s %v", gotAddr, gotTo)
	}
	if !strings.Contains(gotMsg, "Subject: Trading bot - BTCUSDT BUY LIMIT") || !strings.Contains(gotMsg, "text/html") {
		t.Fatalf("unexpected message headers:\n%s", gotMsg)
	}
}

func TestSMTPNotifierWrapsError(t *testing.T) {
	n := NewSMTPNotifier(config.MailConfig{Host: "h", Port: 25, Receivers: []string{"x@example.com"}})
	n.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }
	if err := n.Notify(context.Background(), buildReport()); err == nil || !strings.Contains(err.Error(), "SMTP error") {
		t.Fatalf("expected wrapped SMTP error, got %v", err)
	}
}

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, Report) error { return errors.New("boom") }

func TestMultiCombinesErrors(t *testing.T) {
	log := testutils.NewMockLogger()
	m := Multi{LogNotifier{Log: log}, failingNotifier{}}
	err := m.Notify(context.Background(), buildReport())
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected combined error, got %v", err)
	}
	if !log.Has("order_report") {
		t.Fatalf("log notifier did not run")
	}
}
