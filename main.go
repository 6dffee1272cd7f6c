package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"GridTradeBot/config"
	"GridTradeBot/internal/handlers"
	"GridTradeBot/internal/logger"
	"GridTradeBot/internal/models"
	"GridTradeBot/internal/operations/backtest"
	"GridTradeBot/internal/operations/binance"
	"GridTradeBot/internal/operations/optimizer"
	"GridTradeBot/internal/operations/price"
	"GridTradeBot/internal/operations/run"
	"GridTradeBot/internal/repositories"
	"GridTradeBot/internal/services/analysis"
	"GridTradeBot/internal/services/exchange"
	"GridTradeBot/internal/services/grid"
	"GridTradeBot/internal/services/trading"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(&cfg.Log); err != nil {
		logger.Fatalf("Failed to init logger: %v", err)
	}

	db := setupDatabase(cfg.Database)
	api := binance.NewBinanceClient(cfg.Exchange.APIKey, cfg.Exchange.SecretKey)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configs, err := cfg.RunConfigs()
	if err != nil && cfg.Mode != config.ModeDownload {
		logger.Fatalf("Failed to resolve run configuration: %v", err)
	}

	switch cfg.Mode {
	case config.ModeDownload:
		err = download(ctx, cfg, db, api, configs)
	case config.ModeBacktest:
		err = runBacktests(ctx, cfg, db, api, configs)
	default:
		err = trade(ctx, cfg, db, api, configs)
	}
	if err != nil {
		logger.Fatalf("%s failed: %v", cfg.Mode, err)
	}
	logger.Infof("Shutdown complete")
}

func setupDatabase(dbConfig config.DatabaseConfig) *gorm.DB {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.User,
		dbConfig.Password,
		dbConfig.DBName,
		dbConfig.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Error),
	})
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	return db
}

func symbols(configs []grid.Config) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range configs {
		if !seen[c.Symbol] {
			seen[c.Symbol] = true
			out = append(out, c.Symbol)
		}
	}
	return out
}

func download(ctx context.Context, cfg *config.Config, db *gorm.DB, api *binance.BinanceClient, configs []grid.Config) error {
	recorder := price.NewRecorder(repositories.NewCandleRepository(db), api, symbols(configs))
	return handlers.NewCandleHandler(recorder, cfg.Backtest.Days).Download(ctx)
}

// newReplayer wires a replayer for one symbol with the optimizer as its selector
func newReplayer(ctx context.Context, cfg *config.Config, db *gorm.DB, api *binance.BinanceClient, symbol string, source *price.Fetcher) (*backtest.Replayer, *optimizer.Optimizer) {
	inst := grid.Instrument{Symbol: symbol, LotSize: cfg.Trading.LotSize}
	if ex, err := binance.NewExchange(ctx, api, binance.ExchangeOptions{Symbol: symbol, LotSize: cfg.Trading.LotSize}); err == nil {
		inst = ex.Instrument()
	} else {
		logger.WithField("symbol", symbol).WithError(err).Warn("instrument filters unavailable, prices are not rounded")
	}

	replayer := backtest.NewReplayer(source, backtest.NewDayCache(repositories.NewDayResultRepository(db)), backtest.Options{
		Instrument:   inst,
		Commission:   cfg.Exchange.CommissionRate,
		SessionStart: cfg.Trading.SessionStart,
		SessionEnd:   cfg.Trading.SessionEnd,
		Location:     cfg.Trading.Location,
	})
	opt := optimizer.New(replayer, analysis.NewRangeAnalyzer(source, cfg.Trading.Location), optimizer.Options{
		Instrument: inst,
		Workers:    cfg.Backtest.Workers,
	})
	replayer.SetSelector(opt)
	return replayer, opt
}

func runBacktests(ctx context.Context, cfg *config.Config, db *gorm.DB, api *binance.BinanceClient, configs []grid.Config) error {
	source := price.NewFetcher(repositories.NewCandleRepository(db), api)
	days := optimizer.LookbackDays(time.Now().In(cfg.Trading.Location), cfg.Backtest.Days)

	for _, c := range configs {
		replayer, _ := newReplayer(ctx, cfg, db, api, c.Symbol, source)
		res, err := replayer.Run(ctx, c, cfg.Backtest.StartLots, days, true)
		if err != nil {
			return err
		}

		logger.WithFields(logrus.Fields{
			"symbol":       c.Symbol,
			"days":         len(res.Days),
			"success_days": res.SuccessDays,
			"operations":   res.Operations,
			"end_lots":     res.EndLots,
			"simulations":  replayer.Simulations(),
		}).Infof("profit %.2f (%.2f%%) max drawdown %.2f%% sharpe %.2f final %s",
			res.Profit, res.ProfitPercent, res.MaxDrawdown*100, res.SharpeRatio, res.FinalConfig.String())
	}
	return nil
}

func trade(ctx context.Context, cfg *config.Config, db *gorm.DB, api *binance.BinanceClient, configs []grid.Config) error {
	candleRepo := repositories.NewCandleRepository(db)
	candles := handlers.NewCandleHandler(price.NewRecorder(candleRepo, api, symbols(configs)), cfg.Backtest.Days)
	if err := candles.Start(ctx); err != nil {
		logger.Log.WithError(err).Warn("candle backfill failed, pre-trade selection may be skipped")
	}

	source := price.NewFetcher(candleRepo, api)
	clients := make(map[string]exchange.Client)
	selectors := make(map[string]backtest.ConfigSelector)
	for _, sym := range symbols(configs) {
		ex, err := binance.NewExchange(ctx, api, binance.ExchangeOptions{
			Symbol:         sym,
			LotSize:        cfg.Trading.LotSize,
			CommissionRate: cfg.Exchange.CommissionRate,
		})
		if err != nil {
			return err
		}
		clients[sym] = ex
		_, selectors[sym] = newReplayer(ctx, cfg, db, api, sym, source)
	}

	recorder := run.NewRecorder(repositories.NewRunRepository(db), repositories.NewDealRepository(db))
	commands := handlers.NewCommandHandler(repositories.NewCommandRepository(db))
	opts := trading.Options{
		SessionStart: cfg.Trading.SessionStart,
		SessionEnd:   cfg.Trading.SessionEnd,
		Location:     cfg.Trading.Location,
		SleepTrading: cfg.Trading.SleepTrading,
		RetryBackoff: cfg.Trading.RetryBackoff,
		LotSize:      cfg.Trading.LotSize,
	}

	// one handler per symbol so each run selects with its own instrument
	var runners []*handlers.RunHandler
	for _, c := range configs {
		h := handlers.NewRunHandler(recorder, commands, selectors[c.Symbol], opts)
		if err := h.Start(ctx, []grid.Config{c}, clients); err != nil {
			return err
		}
		runners = append(runners, h)
	}

	logger.Infof("Trading %d configuration(s), waiting for shutdown signal", len(configs))
	for _, h := range runners {
		h.Wait()
	}
	return nil
}
