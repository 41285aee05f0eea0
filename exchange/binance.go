package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/evdnx/gotrade/types"
)

// BinanceGateway talks to the Binance spot REST API.
type BinanceGateway struct {
	apiKey     string
	secretKey  string
	baseURL    string
	recvWindow int64
	httpClient *http.Client
	now        func() time.Time
}

// NewBinanceGateway returns a gateway for baseURL (e.g. https://api.binance.com).
func NewBinanceGateway(apiKey, secretKey, baseURL string, recvWindow int64, timeout time.Duration) *BinanceGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BinanceGateway{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		recvWindow: recvWindow,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type apiOrder struct {
	Symbol              string  `json:"symbol"`
	OrderID             int64   `json:"orderId"`
	ClientOrderID       string  `json:"clientOrderId"`
	Price               float64 `json:"price,string"`
	OrigQty             float64 `json:"origQty,string"`
	ExecutedQty         float64 `json:"executedQty,string"`
	CummulativeQuoteQty float64 `json:"cummulativeQuoteQty,string"`
	Status              string  `json:"status"`
	Type                string  `json:"type"`
	Side                string  `json:"side"`
	Time                int64   `json:"time"`
	TransactTime        int64   `json:"transactTime"`
	Fills               []struct {
		Price           float64 `json:"price,string"`
		Qty             float64 `json:"qty,string"`
		Commission      float64 `json:"commission,string"`
		CommissionAsset string  `json:"commissionAsset"`
	} `json:"fills"`
}

func (o apiOrder) toOrder() types.Order {
	ts := o.Time
	if ts == 0 {
		ts = o.TransactTime
	}
	return types.Order{
		Symbol:             o.Symbol,
		OrderID:            o.OrderID,
		ClientOrderID:      o.ClientOrderID,
		Side:               types.Side(o.Side),
		Type:               types.OrderType(o.Type),
		Status:             types.OrderStatus(o.Status),
		Price:              o.Price,
		OrigQty:            o.OrigQty,
		ExecutedQty:        o.ExecutedQty,
		CumulativeQuoteQty: o.CummulativeQuoteQty,
		Time:               time.UnixMilli(ts),
	}
}

func (o apiOrder) toAck() types.OrderAck {
	ack := types.OrderAck{
		Symbol:             o.Symbol,
		OrderID:            o.OrderID,
		ClientOrderID:      o.ClientOrderID,
		Side:               types.Side(o.Side),
		Type:               types.OrderType(o.Type),
		Status:             types.OrderStatus(o.Status),
		Price:              o.Price,
		OrigQty:            o.OrigQty,
		ExecutedQty:        o.ExecutedQty,
		CumulativeQuoteQty: o.CummulativeQuoteQty,
		TransactTime:       time.UnixMilli(o.TransactTime),
	}
	for _, f := range o.Fills {
		ack.Fills = append(ack.Fills, types.Fill{
			Price:           f.Price,
			Qty:             f.Qty,
			Commission:      f.Commission,
			CommissionAsset: f.CommissionAsset,
		})
	}
	return ack
}

// FetchCandles returns the last limit klines of symbol, oldest first.
func (g *BinanceGateway) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	var raw [][]interface{}
	if err := g.do(ctx, "klines", http.MethodGet, "/api/v3/klines", params, false, &raw); err != nil {
		return nil, err
	}
	candles := make([]types.Candle, 0, len(raw))
	for _, r := range raw {
		if len(r) < 9 {
			return nil, &GatewayError{Op: "klines", Status: http.StatusOK, Err: fmt.Errorf("short kline row of %d fields", len(r))}
		}
		candles = append(candles, types.Candle{
			OpenTime:       time.UnixMilli(toInt64(r[0])),
			Open:           parseFloat(r[1]),
			High:           parseFloat(r[2]),
			Low:            parseFloat(r[3]),
			Close:          parseFloat(r[4]),
			Volume:         parseFloat(r[5]),
			CloseTime:      time.UnixMilli(toInt64(r[6])),
			QuoteVolume:    parseFloat(r[7]),
			NumberOfTrades: toInt64(r[8]),
		})
	}
	return candles, nil
}

// FetchSymbolFilters reads PRICE_FILTER.tickSize and LOT_SIZE.stepSize.
func (g *BinanceGateway) FetchSymbolFilters(ctx context.Context, symbol string) (types.SymbolFilters, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var info struct {
		Symbols []struct {
			Symbol  string `json:"symbol"`
			Filters []struct {
				FilterType string `json:"filterType"`
				TickSize   string `json:"tickSize"`
				StepSize   string `json:"stepSize"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := g.do(ctx, "exchangeInfo", http.MethodGet, "/api/v3/exchangeInfo", params, false, &info); err != nil {
		return types.SymbolFilters{}, err
	}
	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		var f types.SymbolFilters
		for _, flt := range s.Filters {
			switch flt.FilterType {
			case "PRICE_FILTER":
				f.TickSize = parseFloat(flt.TickSize)
			case "LOT_SIZE":
				f.StepSize = parseFloat(flt.StepSize)
			}
		}
		return f, nil
	}
	return types.SymbolFilters{}, &GatewayError{Op: "exchangeInfo", Status: http.StatusOK, Msg: "symbol " + symbol + " not listed"}
}

// FetchFreeBalance returns the free (unlocked) balance of asset.
func (g *BinanceGateway) FetchFreeBalance(ctx context.Context, asset string) (float64, error) {
	var acct struct {
		Balances []struct {
			Asset  string  `json:"asset"`
			Free   float64 `json:"free,string"`
			Locked float64 `json:"locked,string"`
		} `json:"balances"`
	}
	if err := g.do(ctx, "account", http.MethodGet, "/api/v3/account", url.Values{}, true, &acct); err != nil {
		return 0, err
	}
	for _, b := range acct.Balances {
		if b.Asset == asset {
			return b.Free, nil
		}
	}
	return 0, nil
}

// FetchOpenOrders lists the open orders on symbol.
func (g *BinanceGateway) FetchOpenOrders(ctx context.Context, symbol string) ([]types.Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	var raw []apiOrder
	if err := g.do(ctx, "openOrders", http.MethodGet, "/api/v3/openOrders", params, true, &raw); err != nil {
		return nil, err
	}
	return toOrders(raw), nil
}

// FetchOrderHistory lists up to limit orders on symbol, any status.
func (g *BinanceGateway) FetchOrderHistory(ctx context.Context, symbol string, limit int) ([]types.Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(limit))
	var raw []apiOrder
	if err := g.do(ctx, "allOrders", http.MethodGet, "/api/v3/allOrders", params, true, &raw); err != nil {
		return nil, err
	}
	return toOrders(raw), nil
}

// SubmitOrder places a LIMIT GTC or MARKET order and returns the full ack.
func (g *BinanceGateway) SubmitOrder(ctx context.Context, spec types.OrderSpec) (types.OrderAck, error) {
	params := url.Values{}
	params.Set("symbol", spec.Symbol)
	params.Set("side", string(spec.Side))
	params.Set("type", string(spec.Type))
	params.Set("quantity", decimal.NewFromFloat(spec.Quantity).String())
	if spec.Type == types.Limit {
		params.Set("timeInForce", "GTC")
		params.Set("price", decimal.NewFromFloat(spec.Price).String())
	}
	clientID := spec.ClientOrderID
	if clientID == "" {
		clientID = NewClientOrderID()
	}
	params.Set("newClientOrderId", clientID)
	params.Set("newOrderRespType", "FULL")

	var raw apiOrder
	if err := g.do(ctx, "newOrder", http.MethodPost, "/api/v3/order", params, true, &raw); err != nil {
		return types.OrderAck{}, err
	}
	return raw.toAck(), nil
}

// CancelOrder cancels one order.
func (g *BinanceGateway) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))
	return g.do(ctx, "cancelOrder", http.MethodDelete, "/api/v3/order", params, true, nil)
}

// NewClientOrderID returns a unique id within the exchange's 36 char limit.
func NewClientOrderID() string {
	return "gt" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (g *BinanceGateway) do(ctx context.Context, op, method, path string, params url.Values, signed bool, out interface{}) error {
	query := params.Encode()
	if signed {
		params.Set("recvWindow", strconv.FormatInt(g.recvWindow, 10))
		params.Set("timestamp", strconv.FormatInt(g.now().UnixMilli(), 10))
		query = params.Encode()
		query += "&signature=" + g.sign(query)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, nil)
	if err != nil {
		return &GatewayError{Op: op, Err: err}
	}
	req.URL.RawQuery = query
	if g.apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return &GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &GatewayError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("error reading response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) != nil || apiErr.Msg == "" {
			apiErr.Msg = strings.TrimSpace(string(body))
		}
		return &GatewayError{Op: op, Status: resp.StatusCode, Code: apiErr.Code, Msg: apiErr.Msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &GatewayError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("error parsing response: %w", err)}
	}
	return nil
}

func (g *BinanceGateway) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(g.secretKey))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

func toOrders(raw []apiOrder) []types.Order {
	out := make([]types.Order, len(raw))
	for i, o := range raw {
		out[i] = o.toOrder()
	}
	return out
}

func parseFloat(val interface{}) float64 {
	switch v := val.(type) {
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case float64:
		return v
	default:
		return 0
	}
}

func toInt64(val interface{}) int64 {
	switch v := val.(type) {
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}
