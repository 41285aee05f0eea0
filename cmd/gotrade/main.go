// Command gotrade runs the trading bot for one symbol.
//
// Flags:
//
//	-backtest        replay history through the strategy chain and exit
//	-csv <path>      candles for -backtest; fetched from the exchange otherwise
//	-candles <n>     candles fetched for -backtest (default 1000)
//	-token <subject> print an operator token for POST /cycle and exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/evdnx/gotrade/api"
	"github.com/evdnx/gotrade/backtest"
	"github.com/evdnx/gotrade/bot"
	"github.com/evdnx/gotrade/config"
	"github.com/evdnx/gotrade/exchange"
	"github.com/evdnx/gotrade/indicator"
	"github.com/evdnx/gotrade/logger"
	"github.com/evdnx/gotrade/notify"
	"github.com/evdnx/gotrade/store"
	"github.com/evdnx/gotrade/strategy"
	"github.com/evdnx/gotrade/types"
)

func main() {
	var (
		runBacktest bool
		csvPath     string
		candleCount int
		tokenFor    string
	)
	flag.BoolVar(&runBacktest, "backtest", false, "Replay history and exit")
	flag.StringVar(&csvPath, "csv", "", "CSV candles for -backtest (time,open,high,low,close,volume)")
	flag.IntVar(&candleCount, "candles", 1000, "Candles fetched for -backtest")
	flag.StringVar(&tokenFor, "token", "", "Print an operator token for this subject and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()
	if err := config.ApplyVaultSecrets(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "vault: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.NewZapLogger(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	if s, ok := log.(interface{ Sync() error }); ok {
		defer func() { _ = s.Sync() }()
	}

	switch {
	case tokenFor != "":
		err = printToken(cfg, tokenFor)
	case runBacktest:
		err = replay(ctx, cfg, log, csvPath, candleCount)
	default:
		err = run(ctx, cfg, log)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("gotrade_failed", logger.Err(err))
		os.Exit(1)
	}
}

func printToken(cfg *config.Config, subject string) error {
	if cfg.API.JWTSecret == "" {
		return errors.New("GOTRADE_JWT_SECRET is not set")
	}
	token, err := api.IssueToken(cfg.API.JWTSecret, subject, 24*time.Hour)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func newGateway(cfg *config.Config, log logger.Logger) exchange.Gateway {
	binance := exchange.NewBinanceGateway(cfg.Exchange.APIKey, cfg.Exchange.SecretKey,
		cfg.Exchange.BaseURL, cfg.Exchange.RecvWindow, cfg.Exchange.Timeout)
	if !cfg.Trade.DryRun {
		return binance
	}
	log.Info("paper_trading", logger.Float64("quote_balance", cfg.Trade.PaperBalance))
	return exchange.NewPaperExchange(binance, cfg.Trade.BaseAsset, cfg.Trade.QuoteAsset, cfg.Trade.PaperBalance, log)
}

func replay(ctx context.Context, cfg *config.Config, log logger.Logger, csvPath string, n int) error {
	var candles []types.Candle
	var err error
	if csvPath != "" {
		f, err := os.Open(csvPath)
		if err != nil {
			return err
		}
		defer f.Close()
		if candles, err = backtest.LoadCSV(f); err != nil {
			return fmt.Errorf("load %s: %w", csvPath, err)
		}
	} else {
		gw := newGateway(cfg, log)
		if candles, err = gw.FetchCandles(ctx, cfg.Trade.Symbol, cfg.Trade.Interval, n); err != nil {
			return err
		}
	}
	chain, err := strategy.NewChain(cfg.Strategy, log)
	if err != nil {
		return err
	}
	res, err := backtest.Run(candles, chain, backtest.Options{
		StartBalance: backtest.DefaultBalance,
		Windows:      indicator.WindowsFrom(cfg.Indicator),
		Log:          log,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Initial Balance: %.2f %s\n", res.InitialBalance, cfg.Trade.QuoteAsset)
	fmt.Printf("Account Balance: %.2f %s\n", res.FinalBalance, cfg.Trade.QuoteAsset)
	fmt.Printf("Trades Executed: %d\n", len(res.Trades))
	fmt.Printf("Remaining Assets: %g %s\n", res.RemainingAsset, cfg.Trade.BaseAsset)
	fmt.Printf("Profit: %.2f %s\n", res.Profit, cfg.Trade.QuoteAsset)
	return nil
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	gw := newGateway(cfg, log)

	var rdb *redis.Client
	if cfg.Store.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
	}
	positions := store.NewPositionStore(rdb, log)
	defer positions.Close()

	deps := bot.Deps{Gateway: gw, Log: log, Positions: positions}
	var orders api.OrderSource
	if cfg.Store.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		journal := store.NewJournal(pool)
		if err := journal.Migrate(ctx); err != nil {
			return err
		}
		deps.Journal = journal
		orders = journal
	}

	notifiers := notify.Multi{notify.LogNotifier{Log: log}}
	if cfg.Mail.Enabled() {
		notifiers = append(notifiers, notify.NewSMTPNotifier(cfg.Mail))
	}
	deps.Notifier = notifiers

	chain, err := strategy.NewChain(cfg.Strategy, log)
	if err != nil {
		return err
	}
	deps.Chain = chain
	trader, err := bot.NewTrader(cfg, deps)
	if err != nil {
		return err
	}
	if err := trader.Restore(ctx); err != nil {
		log.Warn("position_restore_failed", logger.Err(err))
	}

	sched := bot.NewScheduler(trader, cfg.Trade.BaseDelay, log)
	if cfg.Trade.StreamWakeups {
		stream := &exchange.KlineStream{
			URL:      cfg.Exchange.StreamURL,
			Symbol:   cfg.Trade.Symbol,
			Interval: cfg.Trade.Interval,
			Log:      log,
		}
		go func() {
			err := stream.Run(ctx, func(c types.Candle) {
				if !sched.Trigger() {
					log.Debug("wakeup_ignored_busy", logger.Float64("close", c.Close))
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("kline_stream_stopped", logger.Err(err))
			}
		}()
	}

	srv := api.NewServer(cfg.API, cfg.Trade.Symbol, trader, sched, orders, log)
	go func() {
		if err := srv.Start(); err != nil {
			log.Error("api_failed", logger.Err(err))
		}
	}()
	defer func() {
		shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("gotrade_started",
		logger.String("symbol", cfg.Trade.Symbol),
		logger.String("interval", cfg.Trade.Interval),
		logger.Bool("dry_run", cfg.Trade.DryRun),
		logger.Duration("base_delay", cfg.Trade.BaseDelay),
	)
	return sched.Run(ctx)
}
