package engine

import "time"

// Config holds every numeric default named in spec §4, all overridable
// from the top-level config file (spec §6 "everything else enumerated
// above is a numeric default inside the engine").
type Config struct {
	StartingBalance float64

	TickInterval       time.Duration // 500ms
	LeveragedBatchSize int           // symbols refreshed per tick, round-robin (6)
	EventBookSliceSize int           // event-venue books refreshed per tick
	OrderTimestampTTL  time.Duration // GC horizon for stale order timestamps (60s)

	VenueFailureThreshold int           // consecutive GetOrderBook errors before a venue is marked degraded (5)
	VenueCooldown         time.Duration // refresh skip window for a degraded venue (60s)

	// MomentumDetector
	MomentumWindow         int     // W
	MomentumMinConsecutive int     // C, default 2
	MomentumMinMove        float64 // M, default 2bp = 0.0002
	MomentumImbalanceBand  float64 // ±0.1
	MomentumSecondaryPct   float64 // 0.3%

	// MomentumTrader
	MomentumSizePct float64 // 0.45 of equity, scaled by signal strength

	// LeveragedPositionMgr
	LeveragedDefaultLeverage float64
	SLPct                    float64       // 0.0007
	TrailActivate            float64       // 0.0005
	TrailGiveback            float64       // 0.30
	MaxHold                  time.Duration // 300s

	// BinaryMarketDiscovery
	DiscoveryInterval time.Duration // 30s
	Assets            []string
	Timeframes        []string

	// BinaryBetSelector
	PMBetSizePct        float64 // base sizing scaffold constant
	PMMaxSizePct        float64 // 20% cap
	PerAssetCooldown    time.Duration
	MaxSimultaneousBets int
	MinTradeSize        float64 // $5
	ReservedCashFloor   float64

	// CompleteSetArbDetector
	ArbCostThreshold  float64 // 0.96
	ArbMinShares      float64 // 5
	ArbMinProfitUSD   float64 // $0.50
	ArbEquityFraction float64 // 0.15
	ArbCashFraction   float64 // 0.40

	// FlashCrashDetector
	FlashCrashWindow     time.Duration // 30s rolling history
	FlashCrashRecentWin  time.Duration // 10s recent-max window
	FlashCrashDropPct    float64       // 0.15
	FlashCrashMinSamples int           // 3
	FlashCrashEquityPct  float64       // 0.20

	// RealtimeExitGuard / EarlyExit thresholds
	CheapStopLoss      float64 // -0.30
	CheapTakeProfit     float64 // +0.80
	CheapTrailTrigger   float64 // +0.50
	CheapTrailGiveback  float64 // 0.65
	ModerateStopLossFar float64 // -0.18 (time_to_end > 60s)
	ModerateStopLossRT  float64 // -0.35 realtime guard near expiry
	ModerateNearExpiryCut float64 // -0.25 within 30s of expiry
	NearExpiryWindow    time.Duration // 30s
	RealtimeNearExpiryWindow time.Duration // 60s boundary used by RealtimeExitGuard (§4.9)

	// Settlement
	SettlementGrace time.Duration // 30s
}

// DefaultConfig returns the numeric defaults sourced from spec §4.
func DefaultConfig() Config {
	return Config{
		StartingBalance: 100,

		TickInterval:       500 * time.Millisecond,
		LeveragedBatchSize: 6,
		EventBookSliceSize: 10,
		OrderTimestampTTL:  60 * time.Second,

		VenueFailureThreshold: 5,
		VenueCooldown:         60 * time.Second,

		MomentumWindow:         10,
		MomentumMinConsecutive: 2,
		MomentumMinMove:        0.0002,
		MomentumImbalanceBand:  0.1,
		MomentumSecondaryPct:   0.003,

		MomentumSizePct: 0.45,

		LeveragedDefaultLeverage: 20,
		SLPct:                    0.0007,
		TrailActivate:            0.0005,
		TrailGiveback:            0.30,
		MaxHold:                  300 * time.Second,

		DiscoveryInterval: 30 * time.Second,
		Assets:            []string{"BTC", "ETH"},
		Timeframes:        []string{"5m", "15m"},

		PMBetSizePct:        0.12,
		PMMaxSizePct:        0.20,
		PerAssetCooldown:    3 * time.Second,
		MaxSimultaneousBets: 20,
		MinTradeSize:        5,
		ReservedCashFloor:   20,

		ArbCostThreshold:  0.96,
		ArbMinShares:      5,
		ArbMinProfitUSD:   0.50,
		ArbEquityFraction: 0.15,
		ArbCashFraction:   0.40,

		FlashCrashWindow:     30 * time.Second,
		FlashCrashRecentWin:  10 * time.Second,
		FlashCrashDropPct:    0.15,
		FlashCrashMinSamples: 3,
		FlashCrashEquityPct:  0.20,

		CheapStopLoss:            -0.30,
		CheapTakeProfit:          0.80,
		CheapTrailTrigger:        0.50,
		CheapTrailGiveback:       0.65,
		ModerateStopLossFar:      -0.18,
		ModerateStopLossRT:       -0.35,
		ModerateNearExpiryCut:    -0.25,
		NearExpiryWindow:         30 * time.Second,
		RealtimeNearExpiryWindow: 60 * time.Second,

		SettlementGrace: 30 * time.Second,
	}
}
