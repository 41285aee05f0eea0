package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// StrategyConfig holds the tunables of the strategy chain.
type StrategyConfig struct {
	Primary          string  // default ma_anticipation
	Fallback         string  // default ma_crossover, empty for none
	FallbackActive   bool    // consult Fallback when Primary is inconclusive
	VolatilityFactor float64 // proximity band = volatility * factor
}

// Validate checks that all numeric fields are within sensible bounds.
func (c *StrategyConfig) Validate() error {
	if c.Primary == "" {
		return errors.New("primary strategy must be set")
	}
	if c.FallbackActive && c.Fallback == "" {
		return errors.New("fallback is active but no fallback strategy is set")
	}
	if c.VolatilityFactor <= 0 {
		return fmt.Errorf("VolatilityFactor (%f) must be > 0", c.VolatilityFactor)
	}
	return nil
}

// IndicatorConfig holds the indicator windows.
type IndicatorConfig struct {
	MAFast     int
	MASlow     int
	RSI        int
	Volatility int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	Volume     int
	Vortex     int
	CrossCheck bool // also compute the goti reference RSI
}

// RiskConfig holds the position protection settings.
type RiskConfig struct {
	StopLossPct       float64 // e.g. 0.05 = exit when 5 % below the last buy
	AcceptableLossPct float64 // floor for limit sells below the last buy
}

// TradeConfig describes what and how much is traded.
type TradeConfig struct {
	Symbol        string // e.g. BTCUSDT
	BaseAsset     string // asset held while long, e.g. BTC
	QuoteAsset    string // e.g. USDT
	Interval      string // candle interval, e.g. 15m
	CandleLimit   int
	HistoryLimit  int     // orders fetched to find the last fills
	TradedQty     float64 // by-quantity sizing when > 0
	TradedValue   float64 // by-value sizing when TradedQty is 0
	DryRun        bool    // trade against the in-memory paper exchange
	PaperBalance  float64 // starting quote balance for the paper exchange
	BaseDelay     time.Duration
	SettleDelay   time.Duration
	StreamWakeups bool // start a cycle early when a candle closes
}

// ExchangeConfig holds the gateway credentials and endpoints.
type ExchangeConfig struct {
	BaseURL    string
	StreamURL  string
	APIKey     string
	SecretKey  string
	RecvWindow int64
	Timeout    time.Duration
}

// LogConfig mirrors logger.Options.
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// StoreConfig holds persistence endpoints. Empty values disable a store.
type StoreConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PostgresDSN   string
}

// MailConfig holds the SMTP notifier settings.
type MailConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	Receivers []string
}

// Enabled reports whether e-mail notifications are configured.
func (m MailConfig) Enabled() bool { return m.Host != "" && len(m.Receivers) > 0 }

// APIConfig holds the operator HTTP server settings.
type APIConfig struct {
	Addr      string
	JWTSecret string
}

// VaultConfig points at a KV v2 secret with credentials.
type VaultConfig struct {
	Address string
	Token   string
	Path    string // e.g. secret/data/gotrade
}

// Config is the full application configuration.
type Config struct {
	Trade     TradeConfig
	Strategy  StrategyConfig
	Indicator IndicatorConfig
	Risk      RiskConfig
	Exchange  ExchangeConfig
	Log       LogConfig
	Store     StoreConfig
	Mail      MailConfig
	API       APIConfig
	Vault     VaultConfig
}

// Load reads GOTRADE_* environment variables on top of the defaults.
func Load() *Config {
	return &Config{
		Trade: TradeConfig{
			Symbol:        getEnv("GOTRADE_SYMBOL", "BTCUSDT"),
			BaseAsset:     getEnv("GOTRADE_BASE_ASSET", "BTC"),
			QuoteAsset:    getEnv("GOTRADE_QUOTE_ASSET", "USDT"),
			Interval:      getEnv("GOTRADE_INTERVAL", "15m"),
			CandleLimit:   getEnvAsInt("GOTRADE_CANDLE_LIMIT", 500),
			HistoryLimit:  getEnvAsInt("GOTRADE_HISTORY_LIMIT", 100),
			TradedQty:     getEnvAsFloat("GOTRADE_TRADED_QTY", 0.001),
			TradedValue:   getEnvAsFloat("GOTRADE_TRADED_VALUE", 0),
			DryRun:        getEnvAsBool("GOTRADE_DRY_RUN", true),
			PaperBalance:  getEnvAsFloat("GOTRADE_PAPER_BALANCE", 1000),
			BaseDelay:     getEnvAsDuration("GOTRADE_BASE_DELAY", 15*time.Minute),
			SettleDelay:   getEnvAsDuration("GOTRADE_SETTLE_DELAY", 2*time.Second),
			StreamWakeups: getEnvAsBool("GOTRADE_STREAM_WAKEUPS", false),
		},
		Strategy: StrategyConfig{
			Primary:          getEnv("GOTRADE_STRATEGY", "ma_anticipation"),
			Fallback:         getEnv("GOTRADE_FALLBACK_STRATEGY", "ma_crossover"),
			FallbackActive:   getEnvAsBool("GOTRADE_FALLBACK_ACTIVE", true),
			VolatilityFactor: getEnvAsFloat("GOTRADE_VOLATILITY_FACTOR", 0.5),
		},
		Indicator: IndicatorConfig{
			MAFast:     getEnvAsInt("GOTRADE_MA_FAST", 7),
			MASlow:     getEnvAsInt("GOTRADE_MA_SLOW", 25),
			RSI:        getEnvAsInt("GOTRADE_RSI_WINDOW", 14),
			Volatility: getEnvAsInt("GOTRADE_VOLATILITY_WINDOW", 20),
			MACDFast:   getEnvAsInt("GOTRADE_MACD_FAST", 12),
			MACDSlow:   getEnvAsInt("GOTRADE_MACD_SLOW", 26),
			MACDSignal: getEnvAsInt("GOTRADE_MACD_SIGNAL", 9),
			Volume:     getEnvAsInt("GOTRADE_VOLUME_WINDOW", 20),
			Vortex:     getEnvAsInt("GOTRADE_VORTEX_WINDOW", 14),
			CrossCheck: getEnvAsBool("GOTRADE_RSI_CROSS_CHECK", false),
		},
		Risk: RiskConfig{
			StopLossPct:       getEnvAsFloat("GOTRADE_STOP_LOSS_PCT", 0.05),
			AcceptableLossPct: getEnvAsFloat("GOTRADE_ACCEPTABLE_LOSS_PCT", 0.01),
		},
		Exchange: ExchangeConfig{
			BaseURL:    getEnv("GOTRADE_BINANCE_URL", "https://api.binance.com"),
			StreamURL:  getEnv("GOTRADE_BINANCE_STREAM_URL", "wss://stream.binance.com:9443/ws"),
			APIKey:     getEnv("GOTRADE_API_KEY", ""),
			SecretKey:  getEnv("GOTRADE_SECRET_KEY", ""),
			RecvWindow: int64(getEnvAsInt("GOTRADE_RECV_WINDOW", 30000)),
			Timeout:    getEnvAsDuration("GOTRADE_HTTP_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level:      getEnv("GOTRADE_LOG_LEVEL", "info"),
			File:       getEnv("GOTRADE_LOG_FILE", ""),
			MaxSizeMB:  getEnvAsInt("GOTRADE_LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("GOTRADE_LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvAsInt("GOTRADE_LOG_MAX_AGE_DAYS", 30),
			Compress:   getEnvAsBool("GOTRADE_LOG_COMPRESS", true),
		},
		Store: StoreConfig{
			RedisAddr:     getEnv("GOTRADE_REDIS_ADDR", ""),
			RedisPassword: getEnv("GOTRADE_REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("GOTRADE_REDIS_DB", 0),
			PostgresDSN:   getEnv("GOTRADE_POSTGRES_DSN", ""),
		},
		Mail: MailConfig{
			Host:      getEnv("GOTRADE_SMTP_HOST", ""),
			Port:      getEnvAsInt("GOTRADE_SMTP_PORT", 587),
			Username:  getEnv("GOTRADE_SMTP_USER", ""),
			Password:  getEnv("GOTRADE_SMTP_PASSWORD", ""),
			From:      getEnv("GOTRADE_SMTP_FROM", ""),
			Receivers: getEnvAsList("GOTRADE_MAIL_RECEIVERS"),
		},
		API: APIConfig{
			Addr:      getEnv("GOTRADE_API_ADDR", ":8080"),
			JWTSecret: getEnv("GOTRADE_JWT_SECRET", ""),
		},
		Vault: VaultConfig{
			Address: getEnv("GOTRADE_VAULT_ADDR", ""),
			Token:   getEnv("GOTRADE_VAULT_TOKEN", ""),
			Path:    getEnv("GOTRADE_VAULT_PATH", "secret/data/gotrade"),
		},
	}
}

// Validate returns the first configuration problem found.
func (c *Config) Validate() error {
	if err := c.Strategy.Validate(); err != nil {
		return err
	}
	t := c.Trade
	if t.Symbol == "" || t.BaseAsset == "" || t.QuoteAsset == "" {
		return errors.New("symbol, base asset and quote asset must be set")
	}
	if t.TradedQty <= 0 && t.TradedValue <= 0 {
		return errors.New("either TradedQty or TradedValue must be > 0")
	}
	if t.BaseDelay <= 0 || t.SettleDelay < 0 {
		return fmt.Errorf("invalid delays: base %s settle %s", t.BaseDelay, t.SettleDelay)
	}
	if t.HistoryLimit <= 0 {
		return errors.New("HistoryLimit must be positive")
	}
	in := c.Indicator
	for name, w := range map[string]int{
		"MAFast": in.MAFast, "MASlow": in.MASlow, "RSI": in.RSI, "Volatility": in.Volatility,
		"MACDFast": in.MACDFast, "MACDSlow": in.MACDSlow, "MACDSignal": in.MACDSignal,
	} {
		if w <= 0 {
			return fmt.Errorf("%s window must be positive", name)
		}
	}
	if in.MASlow <= in.MAFast {
		return fmt.Errorf("MASlow (%d) must be greater than MAFast (%d)", in.MASlow, in.MAFast)
	}
	if in.MACDSlow <= in.MACDFast {
		return fmt.Errorf("MACDSlow (%d) must be greater than MACDFast (%d)", in.MACDSlow, in.MACDFast)
	}
	if in.Volume < 0 || in.Vortex < 0 {
		return errors.New("volume and vortex windows cannot be negative")
	}
	if t.CandleLimit < in.MASlow+2 || t.CandleLimit < in.MACDSlow {
		return fmt.Errorf("CandleLimit (%d) too small for the configured windows", t.CandleLimit)
	}
	if c.Risk.StopLossPct <= 0 || c.Risk.StopLossPct > 0.5 {
		return fmt.Errorf("StopLossPct (%f) must be >0 and <=0.5", c.Risk.StopLossPct)
	}
	if c.Risk.AcceptableLossPct < 0 || c.Risk.AcceptableLossPct >= 1 {
		return fmt.Errorf("AcceptableLossPct (%f) must be in [0, 1)", c.Risk.AcceptableLossPct)
	}
	if !t.DryRun && (c.Exchange.APIKey == "" || c.Exchange.SecretKey == "") {
		return errors.New("live trading needs an API key and secret")
	}
	if c.Exchange.RecvWindow <= 0 || c.Exchange.RecvWindow > 60000 {
		return fmt.Errorf("RecvWindow (%d) must be in (0, 60000]", c.Exchange.RecvWindow)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
