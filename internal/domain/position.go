package domain

import "time"

// PositionSide is long or short on a leveraged instrument.
type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
)

// Strategy tags the origin of a position, carried on PositionMeta so the
// engine and telemetry can attribute PnL per strategy (spec §3).
type Strategy string

const (
	StrategyMomentum      Strategy = "momentum"
	StrategyPMUpDown      Strategy = "pm_updown"
	StrategyPMArb         Strategy = "pm_arb"
	StrategyPMFlashCrash  Strategy = "pm_flash_crash"
	StrategyQuant         Strategy = "quant"
)

// PositionState is a node in the LeveragedPositionMgr state machine
// (spec §4.4).
type PositionState string

const (
	StateOpen        PositionState = "OPEN"
	StateTrailing    PositionState = "TRAILING"
	StateClosedTP    PositionState = "CLOSED_TP"
	StateClosedSL    PositionState = "CLOSED_SL"
	StateClosedTime  PositionState = "CLOSED_TIME"
	StateLiquidated  PositionState = "LIQUIDATED"
)

// PaperPosition is a simulated position held in the paper wallet.
type PaperPosition struct {
	ID            string
	Venue         string
	Symbol        string
	Side          PositionSide
	Margin        float64
	Leverage      float64
	EntryPrice    float64
	CurrentPrice  float64
	UnrealizedPnL float64
	StrategyTag   Strategy
	OpenedAt      time.Time
}

// Notional returns margin*leverage, the formula this implementation uses
// uniformly for exposure sizing (SPEC_FULL open question #1).
func (p PaperPosition) Notional() float64 {
	return p.Margin * p.Leverage
}

// directionSign returns +1 for LONG, -1 for SHORT, used by the PnL formula.
func (p PaperPosition) directionSign() float64 {
	if p.Side == PositionShort {
		return -1
	}
	return 1
}

// PnLAt computes the unrealized PnL at the given mark price using the
// invariant formula shared by update_price/close_position (spec §4.12):
//
//	pnl = direction * (price-entry)/entry * margin * leverage
func (p PaperPosition) PnLAt(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return p.directionSign() * (price - p.EntryPrice) / p.EntryPrice * p.Margin * p.Leverage
}

// LiquidationTriggered reports whether the given mark price would liquidate
// this position: the unrealized loss equals or exceeds the margin, i.e. an
// adverse move of 1/leverage (spec §4.4).
func (p PaperPosition) LiquidationTriggered(price float64) bool {
	return p.PnLAt(price) <= -p.Margin
}

// PositionMeta is the side-car tracking trailing-stop state for a leveraged
// position (spec §3).
type PositionMeta struct {
	PositionID  string
	Strategy    Strategy
	MaxPrice    float64
	MinPrice    float64
	State       PositionState
	TrailActive bool
	TPPrice     float64
	SLPrice     float64
}
