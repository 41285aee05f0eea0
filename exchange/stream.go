package exchange

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/evdnx/gotrade/logger"
	"github.com/evdnx/gotrade/types"
)

// KlineStream follows the exchange kline websocket for one symbol and
// reports every candle that closes.
type KlineStream struct {
	URL            string // e.g. wss://stream.binance.com:9443/ws
	Symbol         string
	Interval       string
	Log            logger.Logger
	ReconnectDelay time.Duration
}

// klineEvent mirrors the exchange payload. The upper-case twins are listed
// so that case-insensitive JSON matching cannot mix them up.
type klineEvent struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	K         struct {
		Start       int64  `json:"t"`
		End         int64  `json:"T"`
		Open        string `json:"o"`
		Close       string `json:"c"`
		High        string `json:"h"`
		Low         string `json:"l"`
		LastTradeID int64  `json:"L"`
		Volume      string `json:"v"`
		TakerVolume string `json:"V"`
		QuoteVolume string `json:"q"`
		TakerQuote  string `json:"Q"`
		Trades      int64  `json:"n"`
		Closed      bool   `json:"x"`
	} `json:"k"`
}

func (e klineEvent) candle() types.Candle {
	f := func(s string) float64 {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	return types.Candle{
		OpenTime:       time.UnixMilli(e.K.Start),
		CloseTime:      time.UnixMilli(e.K.End),
		Open:           f(e.K.Open),
		High:           f(e.K.High),
		Low:            f(e.K.Low),
		Close:          f(e.K.Close),
		Volume:         f(e.K.Volume),
		QuoteVolume:    f(e.K.QuoteVolume),
		NumberOfTrades: e.K.Trades,
	}
}

// StreamURL is the websocket endpoint for the symbol and interval.
func (s *KlineStream) StreamURL() string {
	return strings.TrimRight(s.URL, "/") + "/" + strings.ToLower(s.Symbol) + "@kline_" + s.Interval
}

// Run connects, reconnecting after failures, until ctx is done. onClosed
// is called from the read loop for every closed candle.
func (s *KlineStream) Run(ctx context.Context, onClosed func(types.Candle)) error {
	log := s.Log
	if log == nil {
		log = logger.Nop()
	}
	delay := s.ReconnectDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.StreamURL(), nil)
		if err != nil {
			log.Warn("kline_stream_dial_failed", logger.String("url", s.StreamURL()), logger.Err(err))
		} else {
			log.Info("kline_stream_connected", logger.String("symbol", s.Symbol), logger.String("interval", s.Interval))
			s.readLoop(ctx, conn, log, onClosed)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (s *KlineStream) readLoop(ctx context.Context, conn *websocket.Conn, log logger.Logger, onClosed func(types.Candle)) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("kline_stream_read_failed", logger.Err(err))
			}
			return
		}
		var ev klineEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			log.Debug("kline_stream_bad_message", logger.Err(err))
			continue
		}
		if ev.Event != "kline" || !ev.K.Closed {
			continue
		}
		onClosed(ev.candle())
	}
}
