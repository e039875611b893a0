package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/tradeloop/config"
	"github.com/alejandrodnm/tradeloop/internal/adapters/discovery"
	"github.com/alejandrodnm/tradeloop/internal/adapters/leveraged"
	"github.com/alejandrodnm/tradeloop/internal/adapters/notify"
	"github.com/alejandrodnm/tradeloop/internal/adapters/predictionws"
	"github.com/alejandrodnm/tradeloop/internal/adapters/spotfeed"
	"github.com/alejandrodnm/tradeloop/internal/adapters/storage"
	"github.com/alejandrodnm/tradeloop/internal/domain"
	"github.com/alejandrodnm/tradeloop/internal/engine"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("tradeloop starting",
		"config", *configPath,
		"starting_balance", cfg.Engine.StartingBalance,
		"assets", cfg.Engine.Assets,
		"timeframes", cfg.Engine.Timeframes,
	)

	store, err := storage.Open(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := store.ApplySchema(ctx); err != nil {
		slog.Error("failed to apply storage schema", "err", err)
		os.Exit(1)
	}

	leveragedClient := leveraged.New(cfg.Venues.LeveragedBaseURL, 5, 10)
	bookFeed := predictionws.New(cfg.Venues.PredictionWSURL)
	spotFeed := spotfeed.New(cfg.Venues.SpotFeedWSURL, cfg.Engine.Assets)
	discoveryClient := discovery.New(cfg.Venues.PredictionDiscoveryURL, 5, 10)

	eng := engine.New(cfg.ToEngineConfig(), leveragedClient, bookFeed, spotFeed, discoveryClient)

	console := notify.NewConsole()
	eng.OnSnapshot(func(snap domain.TelemetrySnapshot) {
		if err := console.Publish(ctx, snap); err != nil {
			slog.Warn("notifier publish failed", "err", err)
		}
		persistSnapshot(ctx, store, snap)
	})

	if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("engine exited with error", "err", err)
		os.Exit(1)
	}

	printFinalReport(eng)
	slog.Info("tradeloop stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// persistSnapshot saves every recent trade and the latest equity point.
// SaveTrade is idempotent (ON CONFLICT DO NOTHING keyed on position id),
// so re-saving the same recent-trades window on every tick is safe.
func persistSnapshot(ctx context.Context, store *storage.SQLiteStorage, snap domain.TelemetrySnapshot) {
	for _, trade := range snap.RecentTrades {
		if err := store.SaveTrade(ctx, trade); err != nil {
			slog.Warn("failed to save trade", "position_id", trade.PositionID, "err", err)
		}
	}
	if len(snap.EquityCurve) == 0 {
		return
	}
	latest := snap.EquityCurve[len(snap.EquityCurve)-1]
	if err := store.SaveEquityPoint(ctx, latest); err != nil {
		slog.Warn("failed to save equity point", "err", err)
	}
}

func printFinalReport(eng *engine.TickEngine) {
	state := eng.Wallet().State()
	slog.Info("final report",
		"equity", state.Equity(),
		"cash", state.CashBalance,
		"realized_pnl", state.TotalRealizedPnL,
		"open_positions", len(state.Positions),
	)
}
