package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/evdnx/gotrade/bot"
	"github.com/evdnx/gotrade/config"
	"github.com/evdnx/gotrade/indicator"
	"github.com/evdnx/gotrade/risk"
	"github.com/evdnx/gotrade/strategy"
	"github.com/evdnx/gotrade/types"
)

const testSecret = "s3cret"

type stubTrader struct {
	last    bot.CycleOutcome
	hasLast bool
	pos     risk.PositionState
}

func (s *stubTrader) Last() (bot.CycleOutcome, bool) { return s.last, s.hasLast }
func (s *stubTrader) Position() risk.PositionState   { return s.pos }

type stubScheduler struct {
	busy     bool
	triggers int
}

func (s *stubScheduler) Trigger() bool {
	if s.busy {
		return false
	}
	s.triggers++
	return true
}
func (s *stubScheduler) Busy() bool { return s.busy }

type stubOrders struct{ orders []types.Order }

func (s stubOrders) RecentOrders(context.Context, string, int) ([]types.Order, error) {
	return s.orders, nil
}

func newTestServer(tr *stubTrader, sch *stubScheduler, orders OrderSource) *Server {
	gin.SetMode(gin.TestMode)
	return NewServer(config.APIConfig{Addr: ":0", JWTSecret: testSecret}, "BTCUSDT", tr, sch, orders, nil)
}

func do(t *testing.T, s *Server, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s := newTestServer(&stubTrader{}, &stubScheduler{}, nil)
	w := do(t, s, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
}

func TestStatusReportsLastCycle(t *testing.T) {
	tr := &stubTrader{
		hasLast: true,
		pos:     risk.PositionState{IsLong: true, LastBuyPrice: 101},
		last: bot.CycleOutcome{
			Signal:            types.SignalHold,
			Stage:             bot.StageIndicators,
			Err:               errors.New("not enough candles"),
			Kind:              bot.KindInsufficientData,
			StopLossEvaluated: true,
			Decision:          strategy.Decision{Strategy: strategy.NameCrossover},
			Bundle:            &indicator.Bundle{MAFast: []float64{1, 2}, MASlow: []float64{3}, RSI: []float64{55}},
		},
	}
	orders := stubOrders{orders: []types.Order{{OrderID: 5, Side: types.Buy}}}
	s := newTestServer(tr, &stubScheduler{}, orders)
	w := do(t, s, http.MethodGet, "/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var body struct {
		Symbol   string `json:"symbol"`
		Position struct {
			IsLong       bool    `json:"is_long"`
			LastBuyPrice float64 `json:"last_buy_price"`
		} `json:"position"`
		LastCycle struct {
			Signal            string `json:"signal"`
			Stage             string `json:"stage"`
			Kind              string `json:"error_kind"`
			StopLossEvaluated bool   `json:"stop_loss_evaluated"`
			Indicators        struct {
				MAFast float64 `json:"ma_fast"`
				RSI    float64 `json:"rsi"`
			} `json:"indicators"`
		} `json:"last_cycle"`
		RecentOrders []json.RawMessage `json:"recent_orders"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Symbol != "BTCUSDT" || !body.Position.IsLong || body.Position.LastBuyPrice != 101 {
		t.Fatalf("unexpected position %+v", body)
	}
	lc := body.LastCycle
	if lc.Signal != "HOLD" || lc.Stage != bot.StageIndicators || lc.Kind != bot.KindInsufficientData || !lc.StopLossEvaluated {
		t.Fatalf("unexpected last cycle %+v", lc)
	}
	if lc.Indicators.MAFast != 2 || lc.Indicators.RSI != 55 {
		t.Fatalf("unexpected indicators %+v", lc.Indicators)
	}
	if len(body.RecentOrders) != 1 {
		t.Fatalf("expected one recent order")
	}
}

func TestCycleRequiresToken(t *testing.T) {
	sch := &stubScheduler{}
	s := newTestServer(&stubTrader{}, sch, nil)

	if w := do(t, s, http.MethodPost, "/cycle", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	bad, _ := IssueToken("other", "ops", time.Minute)
	if w := do(t, s, http.MethodPost, "/cycle", bad); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a foreign signature, got %d", w.Code)
	}
	expired, _ := IssueToken(testSecret, "ops", -time.Minute)
	if w := do(t, s, http.MethodPost, "/cycle", expired); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for an expired token, got %d", w.Code)
	}
	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "ops"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if w := do(t, s, http.MethodPost, "/cycle", unsigned); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for alg none, got %d", w.Code)
	}
	if sch.triggers != 0 {
		t.Fatalf("scheduler must not be triggered without a valid token")
	}
}

func TestCycleTriggersScheduler(t *testing.T) {
	sch := &stubScheduler{}
	s := newTestServer(&stubTrader{}, sch, nil)
	token, err := IssueToken(testSecret, "ops", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if w := do(t, s, http.MethodPost, "/cycle", token); w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d %s", w.Code, w.Body.String())
	}
	if sch.triggers != 1 {
		t.Fatalf("expected one trigger, got %d", sch.triggers)
	}
	sch.busy = true
	if w := do(t, s, http.MethodPost, "/cycle", token); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 while busy, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(&stubTrader{}, &stubScheduler{}, nil)
	w := do(t, s, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Fatalf("unexpected metrics response %d", w.Code)
	}
}
