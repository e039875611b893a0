// Package config loads the engine's YAML configuration and applies
// environment overrides, in the same Load/applyEnvOverrides/setDefaults
// shape the teacher project uses.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/tradeloop/internal/engine"
)

// Config is the full process configuration.
type Config struct {
	Venues    VenuesConfig    `yaml:"venues"`
	Engine    EngineConfig    `yaml:"engine"`
	Storage   StorageConfig   `yaml:"storage"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// VenuesConfig holds the base/WS URLs for each external collaborator.
type VenuesConfig struct {
	LeveragedBaseURL      string `yaml:"leveraged_base_url"`
	PredictionWSURL       string `yaml:"prediction_ws_url"`
	PredictionDiscoveryURL string `yaml:"prediction_discovery_url"`
	SpotFeedWSURL         string `yaml:"spot_feed_ws_url"`
}

// EngineConfig carries the numeric defaults internal/engine.Config
// exposes, all overridable from YAML (spec §6), except the venue
// circuit-breaker settings, which ToEngineConfig takes from
// engine.DefaultConfig().
type EngineConfig struct {
	StartingBalance float64 `yaml:"starting_balance"`

	TickIntervalMs       int `yaml:"tick_interval_ms"`
	LeveragedBatchSize   int `yaml:"leveraged_batch_size"`
	EventBookSliceSize   int `yaml:"event_book_slice_size"`
	OrderTimestampTTLSec int `yaml:"order_timestamp_ttl_sec"`

	MomentumWindow         int     `yaml:"momentum_window"`
	MomentumMinConsecutive int     `yaml:"momentum_min_consecutive"`
	MomentumMinMove        float64 `yaml:"momentum_min_move"`
	MomentumImbalanceBand  float64 `yaml:"momentum_imbalance_band"`
	MomentumSecondaryPct   float64 `yaml:"momentum_secondary_pct"`
	MomentumSizePct        float64 `yaml:"momentum_size_pct"`

	LeveragedDefaultLeverage float64 `yaml:"leveraged_default_leverage"`
	SLPct                    float64 `yaml:"sl_pct"`
	TrailActivate            float64 `yaml:"trail_activate"`
	TrailGiveback            float64 `yaml:"trail_giveback"`
	MaxHoldSec               int     `yaml:"max_hold_sec"`

	DiscoveryIntervalSec int      `yaml:"discovery_interval_sec"`
	Assets               []string `yaml:"assets"`
	Timeframes           []string `yaml:"timeframes"`

	PMBetSizePct        float64 `yaml:"pm_bet_size_pct"`
	PMMaxSizePct        float64 `yaml:"pm_max_size_pct"`
	PerAssetCooldownSec int     `yaml:"per_asset_cooldown_sec"`
	MaxSimultaneousBets int     `yaml:"max_simultaneous_bets"`
	MinTradeSize        float64 `yaml:"min_trade_size"`
	ReservedCashFloor   float64 `yaml:"reserved_cash_floor"`

	ArbCostThreshold  float64 `yaml:"arb_cost_threshold"`
	ArbMinShares      float64 `yaml:"arb_min_shares"`
	ArbMinProfitUSD   float64 `yaml:"arb_min_profit_usd"`
	ArbEquityFraction float64 `yaml:"arb_equity_fraction"`
	ArbCashFraction   float64 `yaml:"arb_cash_fraction"`

	FlashCrashWindowSec    int     `yaml:"flash_crash_window_sec"`
	FlashCrashRecentWinSec int     `yaml:"flash_crash_recent_win_sec"`
	FlashCrashDropPct      float64 `yaml:"flash_crash_drop_pct"`
	FlashCrashMinSamples   int     `yaml:"flash_crash_min_samples"`
	FlashCrashEquityPct    float64 `yaml:"flash_crash_equity_pct"`

	CheapStopLoss            float64 `yaml:"cheap_stop_loss"`
	CheapTakeProfit          float64 `yaml:"cheap_take_profit"`
	CheapTrailTrigger        float64 `yaml:"cheap_trail_trigger"`
	CheapTrailGiveback       float64 `yaml:"cheap_trail_giveback"`
	ModerateStopLossFar      float64 `yaml:"moderate_stop_loss_far"`
	ModerateStopLossRT       float64 `yaml:"moderate_stop_loss_rt"`
	ModerateNearExpiryCut    float64 `yaml:"moderate_near_expiry_cut"`
	NearExpiryWindowSec      int     `yaml:"near_expiry_window_sec"`
	RealtimeNearExpiryWinSec int     `yaml:"realtime_near_expiry_window_sec"`

	SettlementGraceSec int `yaml:"settlement_grace_sec"`
}

// StorageConfig controls where trades/equity points are persisted.
type StorageConfig struct {
	DSN string `yaml:"dsn"`
}

// TelemetryConfig controls the snapshot publish cadence and port.
type TelemetryConfig struct {
	Port             int `yaml:"port"`
	PublishIntervalMs int `yaml:"publish_interval_ms"`
}

// LogConfig controls logging format and level.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML config at path, applies a .env file if present, then
// environment-variable overrides, then fills in defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STARTING_BALANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Engine.StartingBalance = f
		}
	}
	if v := os.Getenv("TELEMETRY_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Telemetry.Port = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}

func setDefaults(cfg *Config) {
	def := engine.DefaultConfig()

	if cfg.Engine.StartingBalance <= 0 {
		cfg.Engine.StartingBalance = def.StartingBalance
	}
	if cfg.Engine.TickIntervalMs <= 0 {
		cfg.Engine.TickIntervalMs = int(def.TickInterval.Milliseconds())
	}
	if cfg.Engine.LeveragedBatchSize <= 0 {
		cfg.Engine.LeveragedBatchSize = def.LeveragedBatchSize
	}
	if cfg.Engine.EventBookSliceSize <= 0 {
		cfg.Engine.EventBookSliceSize = def.EventBookSliceSize
	}
	if cfg.Engine.OrderTimestampTTLSec <= 0 {
		cfg.Engine.OrderTimestampTTLSec = int(def.OrderTimestampTTL.Seconds())
	}
	if cfg.Engine.MomentumWindow <= 0 {
		cfg.Engine.MomentumWindow = def.MomentumWindow
	}
	if cfg.Engine.MomentumMinConsecutive <= 0 {
		cfg.Engine.MomentumMinConsecutive = def.MomentumMinConsecutive
	}
	if cfg.Engine.MomentumMinMove <= 0 {
		cfg.Engine.MomentumMinMove = def.MomentumMinMove
	}
	if cfg.Engine.MomentumImbalanceBand <= 0 {
		cfg.Engine.MomentumImbalanceBand = def.MomentumImbalanceBand
	}
	if cfg.Engine.MomentumSecondaryPct <= 0 {
		cfg.Engine.MomentumSecondaryPct = def.MomentumSecondaryPct
	}
	if cfg.Engine.MomentumSizePct <= 0 {
		cfg.Engine.MomentumSizePct = def.MomentumSizePct
	}
	if cfg.Engine.LeveragedDefaultLeverage <= 0 {
		cfg.Engine.LeveragedDefaultLeverage = def.LeveragedDefaultLeverage
	}
	if cfg.Engine.SLPct <= 0 {
		cfg.Engine.SLPct = def.SLPct
	}
	if cfg.Engine.TrailActivate <= 0 {
		cfg.Engine.TrailActivate = def.TrailActivate
	}
	if cfg.Engine.TrailGiveback <= 0 {
		cfg.Engine.TrailGiveback = def.TrailGiveback
	}
	if cfg.Engine.MaxHoldSec <= 0 {
		cfg.Engine.MaxHoldSec = int(def.MaxHold.Seconds())
	}
	if cfg.Engine.DiscoveryIntervalSec <= 0 {
		cfg.Engine.DiscoveryIntervalSec = int(def.DiscoveryInterval.Seconds())
	}
	if len(cfg.Engine.Assets) == 0 {
		cfg.Engine.Assets = def.Assets
	}
	if len(cfg.Engine.Timeframes) == 0 {
		cfg.Engine.Timeframes = def.Timeframes
	}
	if cfg.Engine.PMBetSizePct <= 0 {
		cfg.Engine.PMBetSizePct = def.PMBetSizePct
	}
	if cfg.Engine.PMMaxSizePct <= 0 {
		cfg.Engine.PMMaxSizePct = def.PMMaxSizePct
	}
	if cfg.Engine.PerAssetCooldownSec <= 0 {
		cfg.Engine.PerAssetCooldownSec = int(def.PerAssetCooldown.Seconds())
	}
	if cfg.Engine.MaxSimultaneousBets <= 0 {
		cfg.Engine.MaxSimultaneousBets = def.MaxSimultaneousBets
	}
	if cfg.Engine.MinTradeSize <= 0 {
		cfg.Engine.MinTradeSize = def.MinTradeSize
	}
	if cfg.Engine.ReservedCashFloor <= 0 {
		cfg.Engine.ReservedCashFloor = def.ReservedCashFloor
	}
	if cfg.Engine.ArbCostThreshold <= 0 {
		cfg.Engine.ArbCostThreshold = def.ArbCostThreshold
	}
	if cfg.Engine.ArbMinShares <= 0 {
		cfg.Engine.ArbMinShares = def.ArbMinShares
	}
	if cfg.Engine.ArbMinProfitUSD <= 0 {
		cfg.Engine.ArbMinProfitUSD = def.ArbMinProfitUSD
	}
	if cfg.Engine.ArbEquityFraction <= 0 {
		cfg.Engine.ArbEquityFraction = def.ArbEquityFraction
	}
	if cfg.Engine.ArbCashFraction <= 0 {
		cfg.Engine.ArbCashFraction = def.ArbCashFraction
	}
	if cfg.Engine.FlashCrashWindowSec <= 0 {
		cfg.Engine.FlashCrashWindowSec = int(def.FlashCrashWindow.Seconds())
	}
	if cfg.Engine.FlashCrashRecentWinSec <= 0 {
		cfg.Engine.FlashCrashRecentWinSec = int(def.FlashCrashRecentWin.Seconds())
	}
	if cfg.Engine.FlashCrashDropPct <= 0 {
		cfg.Engine.FlashCrashDropPct = def.FlashCrashDropPct
	}
	if cfg.Engine.FlashCrashMinSamples <= 0 {
		cfg.Engine.FlashCrashMinSamples = def.FlashCrashMinSamples
	}
	if cfg.Engine.FlashCrashEquityPct <= 0 {
		cfg.Engine.FlashCrashEquityPct = def.FlashCrashEquityPct
	}
	if cfg.Engine.CheapStopLoss == 0 {
		cfg.Engine.CheapStopLoss = def.CheapStopLoss
	}
	if cfg.Engine.CheapTakeProfit <= 0 {
		cfg.Engine.CheapTakeProfit = def.CheapTakeProfit
	}
	if cfg.Engine.CheapTrailTrigger <= 0 {
		cfg.Engine.CheapTrailTrigger = def.CheapTrailTrigger
	}
	if cfg.Engine.CheapTrailGiveback <= 0 {
		cfg.Engine.CheapTrailGiveback = def.CheapTrailGiveback
	}
	if cfg.Engine.ModerateStopLossFar == 0 {
		cfg.Engine.ModerateStopLossFar = def.ModerateStopLossFar
	}
	if cfg.Engine.ModerateStopLossRT == 0 {
		cfg.Engine.ModerateStopLossRT = def.ModerateStopLossRT
	}
	if cfg.Engine.ModerateNearExpiryCut == 0 {
		cfg.Engine.ModerateNearExpiryCut = def.ModerateNearExpiryCut
	}
	if cfg.Engine.NearExpiryWindowSec <= 0 {
		cfg.Engine.NearExpiryWindowSec = int(def.NearExpiryWindow.Seconds())
	}
	if cfg.Engine.RealtimeNearExpiryWinSec <= 0 {
		cfg.Engine.RealtimeNearExpiryWinSec = int(def.RealtimeNearExpiryWindow.Seconds())
	}
	if cfg.Engine.SettlementGraceSec <= 0 {
		cfg.Engine.SettlementGraceSec = int(def.SettlementGrace.Seconds())
	}

	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "tradeloop.db"
	}
	if cfg.Telemetry.Port == 0 {
		cfg.Telemetry.Port = 8088
	}
	if cfg.Telemetry.PublishIntervalMs <= 0 {
		cfg.Telemetry.PublishIntervalMs = 2000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// ToEngineConfig converts the YAML-shaped durations/seconds into an
// internal/engine.Config.
func (c *Config) ToEngineConfig() engine.Config {
	e := c.Engine
	def := engine.DefaultConfig()
	return engine.Config{
		StartingBalance:          e.StartingBalance,
		TickInterval:             time.Duration(e.TickIntervalMs) * time.Millisecond,
		LeveragedBatchSize:       e.LeveragedBatchSize,
		EventBookSliceSize:       e.EventBookSliceSize,
		OrderTimestampTTL:        time.Duration(e.OrderTimestampTTLSec) * time.Second,
		MomentumWindow:           e.MomentumWindow,
		MomentumMinConsecutive:   e.MomentumMinConsecutive,
		MomentumMinMove:          e.MomentumMinMove,
		MomentumImbalanceBand:    e.MomentumImbalanceBand,
		MomentumSecondaryPct:     e.MomentumSecondaryPct,
		MomentumSizePct:          e.MomentumSizePct,
		LeveragedDefaultLeverage: e.LeveragedDefaultLeverage,
		SLPct:                    e.SLPct,
		TrailActivate:            e.TrailActivate,
		TrailGiveback:            e.TrailGiveback,
		MaxHold:                  time.Duration(e.MaxHoldSec) * time.Second,
		DiscoveryInterval:        time.Duration(e.DiscoveryIntervalSec) * time.Second,
		Assets:                   e.Assets,
		Timeframes:               e.Timeframes,
		PMBetSizePct:             e.PMBetSizePct,
		PMMaxSizePct:             e.PMMaxSizePct,
		PerAssetCooldown:         time.Duration(e.PerAssetCooldownSec) * time.Second,
		MaxSimultaneousBets:      e.MaxSimultaneousBets,
		MinTradeSize:             e.MinTradeSize,
		ReservedCashFloor:        e.ReservedCashFloor,
		ArbCostThreshold:         e.ArbCostThreshold,
		ArbMinShares:             e.ArbMinShares,
		ArbMinProfitUSD:          e.ArbMinProfitUSD,
		ArbEquityFraction:        e.ArbEquityFraction,
		ArbCashFraction:          e.ArbCashFraction,
		FlashCrashWindow:         time.Duration(e.FlashCrashWindowSec) * time.Second,
		FlashCrashRecentWin:      time.Duration(e.FlashCrashRecentWinSec) * time.Second,
		FlashCrashDropPct:        e.FlashCrashDropPct,
		FlashCrashMinSamples:     e.FlashCrashMinSamples,
		FlashCrashEquityPct:      e.FlashCrashEquityPct,
		CheapStopLoss:            e.CheapStopLoss,
		CheapTakeProfit:          e.CheapTakeProfit,
		CheapTrailTrigger:        e.CheapTrailTrigger,
		CheapTrailGiveback:       e.CheapTrailGiveback,
		ModerateStopLossFar:      e.ModerateStopLossFar,
		ModerateStopLossRT:       e.ModerateStopLossRT,
		ModerateNearExpiryCut:    e.ModerateNearExpiryCut,
		NearExpiryWindow:         time.Duration(e.NearExpiryWindowSec) * time.Second,
		RealtimeNearExpiryWindow: time.Duration(e.RealtimeNearExpiryWinSec) * time.Second,
		SettlementGrace:          time.Duration(e.SettlementGraceSec) * time.Second,
		VenueFailureThreshold:    def.VenueFailureThreshold,
		VenueCooldown:            def.VenueCooldown,
	}
}
