package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evdnx/gotrade/bot"
	"github.com/evdnx/gotrade/config"
	"github.com/evdnx/gotrade/indicator"
	"github.com/evdnx/gotrade/logger"
	"github.com/evdnx/gotrade/risk"
	"github.com/evdnx/gotrade/types"
)

// Trader is the read side of the cycle driver.
type Trader interface {
	Last() (bot.CycleOutcome, bool)
	Position() risk.PositionState
}

// Scheduler accepts operator wakeups.
type Scheduler interface {
	Trigger() bool
	Busy() bool
}

// OrderSource serves journaled orders; *store.Journal is one.
type OrderSource interface {
	RecentOrders(ctx context.Context, symbol string, limit int) ([]types.Order, error)
}

// Server is the operator HTTP surface.
type Server struct {
	cfg       config.APIConfig
	symbol    string
	trader    Trader
	scheduler Scheduler
	orders    OrderSource // may be nil
	log       logger.Logger

	router     *gin.Engine
	httpServer *http.Server
}

func NewServer(cfg config.APIConfig, symbol string, trader Trader, scheduler Scheduler, orders OrderSource, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	s := &Server{
		cfg:       cfg,
		symbol:    symbol,
		trader:    trader,
		scheduler: scheduler,
		orders:    orders,
		log:       log,
		router:    router,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/status", s.handleStatus)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.POST("/cycle", s.authMiddleware(), s.handleCycle)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start blocks serving on cfg.Addr until Shutdown.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.log.Info("api_listening", logger.String("addr", s.cfg.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http_request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("took", time.Since(start)),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type indicatorView struct {
	MAFast         float64  `json:"ma_fast"`
	MASlow         float64  `json:"ma_slow"`
	MAFastGradient float64  `json:"ma_fast_gradient"`
	MASlowGradient float64  `json:"ma_slow_gradient"`
	Volatility     float64  `json:"volatility"`
	RSI            float64  `json:"rsi"`
	ReferenceRSI   *float64 `json:"reference_rsi,omitempty"`
	MACD           float64  `json:"macd"`
	MACDSignal     float64  `json:"macd_signal"`
	MACDHistogram  float64  `json:"macd_histogram"`
	Close          float64  `json:"close"`
	Volume         float64  `json:"volume"`
	AvgVolume      float64  `json:"avg_volume"`
}

type cycleView struct {
	Signal            string           `json:"signal"`
	Traded            bool             `json:"traded"`
	Strategy          string           `json:"strategy,omitempty"`
	FallbackUsed      bool             `json:"fallback_used"`
	Stage             string           `json:"stage"`
	Kind              string           `json:"error_kind,omitempty"`
	Error             string           `json:"error,omitempty"`
	StopLossEvaluated bool             `json:"stop_loss_evaluated"`
	StopLossTriggered bool             `json:"stop_loss_triggered"`
	Order             *types.OrderSpec `json:"order,omitempty"`
	Ack               *types.OrderAck  `json:"ack,omitempty"`
	Indicators        *indicatorView   `json:"indicators,omitempty"`
	StartedAt         time.Time        `json:"started_at"`
	FinishedAt        time.Time        `json:"finished_at"`
}

func newCycleView(o bot.CycleOutcome) cycleView {
	v := cycleView{
		Signal:            string(o.Signal),
		Traded:            o.Traded,
		Strategy:          o.Decision.Strategy,
		FallbackUsed:      o.Decision.FallbackUsed,
		Stage:             o.Stage,
		Kind:              o.Kind,
		StopLossEvaluated: o.StopLossEvaluated,
		StopLossTriggered: o.StopLossTriggered,
		Order:             o.Order,
		Ack:               o.Ack,
		StartedAt:         o.StartedAt,
		FinishedAt:        o.FinishedAt,
	}
	if o.Err != nil {
		v.Error = o.Err.Error()
	}
	if b := o.Bundle; b != nil {
		iv := &indicatorView{
			MAFast:         indicator.Last(b.MAFast),
			MASlow:         indicator.Last(b.MASlow),
			MAFastGradient: b.MAFastGradient,
			MASlowGradient: b.MASlowGradient,
			Volatility:     indicator.Last(b.Volatility),
			RSI:            b.LastRSI(),
			MACD:           indicator.Last(b.MACDLine),
			MACDSignal:     indicator.Last(b.MACDSignal),
			MACDHistogram:  indicator.Last(b.MACDHistogram),
			Close:          b.Close,
			Volume:         b.Volume,
			AvgVolume:      b.AvgVolume,
		}
		if b.HasReferenceRSI {
			ref := b.ReferenceRSI
			iv.ReferenceRSI = &ref
		}
		v.Indicators = iv
	}
	return v
}

func (s *Server) handleStatus(c *gin.Context) {
	pos := s.trader.Position()
	resp := gin.H{
		"symbol": s.symbol,
		"busy":   s.scheduler.Busy(),
		"position": gin.H{
			"is_long":                   pos.IsLong,
			"last_buy_price":            pos.LastBuyPrice,
			"last_sell_price":           pos.LastSellPrice,
			"partial_quantity_discount": pos.PartialQuantityDiscount,
		},
	}
	if last, ok := s.trader.Last(); ok {
		resp["last_cycle"] = newCycleView(last)
	}
	if s.orders != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		orders, err := s.orders.RecentOrders(ctx, s.symbol, 10)
		if err != nil {
			s.log.Warn("recent_orders_failed", logger.Err(err))
		} else {
			resp["recent_orders"] = orders
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCycle(c *gin.Context) {
	if !s.scheduler.Trigger() {
		c.JSON(http.StatusConflict, gin.H{"error": "cycle already running"})
		return
	}
	s.log.Info("cycle_requested", logger.String("subject", c.GetString("subject")))
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

// authMiddleware accepts HS256 bearer tokens signed with the configured
// secret. Without a secret every request is refused.
func (s *Server) authMiddleware() gin.HandlerFunc {
	secret := []byte(s.cfg.JWTSecret)
	return func(c *gin.Context) {
		if len(secret) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "operator token not configured"})
			return
		}
		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(parts[1], claims, func(*jwt.Token) (interface{}, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("subject", claims.Subject)
		c.Next()
	}
}

// IssueToken signs an operator token for subject valid for ttl.
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    "gotrade",
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
