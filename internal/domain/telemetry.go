package domain

import "time"

// ClosedTrade is an immutable record of a completed position, kept for the
// telemetry feed's recent-trades list and for storage persistence.
type ClosedTrade struct {
	PositionID  string
	Venue       string
	Symbol      string
	StrategyTag Strategy
	Side        PositionSide
	EntryPrice  float64
	ExitPrice   float64
	Margin      float64
	Leverage    float64
	RealizedPnL float64
	Reason      ExitReason
	OpenedAt    time.Time
	ClosedAt    time.Time
}

// StrategyMetrics aggregates realized PnL and trade counts for one
// strategy tag, published on the telemetry snapshot.
type StrategyMetrics struct {
	Strategy    Strategy
	TradeCount  int
	Wins        int
	RealizedPnL float64
}

// DivergenceSignal is an informational, non-traded cross-venue pricing
// observation (SPEC_FULL open question #2 — telemetry only, never sized).
type DivergenceSignal struct {
	Asset           string
	LeveragedMid    float64
	PredictionImpliedPrice float64
	DivergencePct   float64
	ObservedAt      time.Time
}

// TelemetrySnapshot is a deep-copy, read-only view of engine state
// published on a fixed cadence (spec §4.13). Every field is a value or a
// freshly-allocated slice/map — no consumer can observe or mutate engine
// internals through it.
type TelemetrySnapshot struct {
	GeneratedAt     time.Time
	UptimeSeconds   float64
	TickCount       uint64
	TicksPerSecond  float64

	CashBalance     float64
	Equity          float64
	StartingBalance float64
	TotalRealizedPnL float64
	PerVenueRealized map[string]float64

	OpenPositions int
	Positions     []PaperPosition
	RecentTrades  []ClosedTrade
	EquityCurve   []EquityPoint

	StrategyMetrics []StrategyMetrics
	TopBooks        map[string]OrderBook
	ActiveMarkets   int
	Divergences     []DivergenceSignal
}
