package engine

import (
	"time"

	"github.com/alejandrodnm/tradeloop/internal/domain"
)

// MomentumTrader opens a leveraged-venue position on the first confirmed
// momentum signal for an asset, sizing margin as a fraction of equity
// scaled by signal strength (spec §8 momentum round-trip scenario):
//
//	margin = MomentumSizePct * equity * (0.5 + strength*0.5)
//
// Once opened, LeveragedPositionMgr owns the position's trailing-stop,
// hard-SL, time-exit and liquidation state machine; this component only
// decides whether to open.
type MomentumTrader struct {
	cfg    Config
	wallet *PaperWallet
}

// NewMomentumTrader wires a trader to the shared wallet.
func NewMomentumTrader(cfg Config, wallet *PaperWallet) *MomentumTrader {
	return &MomentumTrader{cfg: cfg, wallet: wallet}
}

// OnSignal opens one momentum position per asset: a confirmed signal is
// ignored if a momentum position on the same asset is already open, since
// the detector re-confirms on every tick the run persists.
func (t *MomentumTrader) OnSignal(sig domain.MomentumSignal, price float64, now time.Time) string {
	if price <= 0 {
		return ""
	}
	for _, pos := range t.wallet.State().Positions {
		if pos.StrategyTag == domain.StrategyMomentum && pos.Symbol == sig.Asset {
			return ""
		}
	}

	strength := sig.Strength
	switch {
	case strength > 1:
		strength = 1
	case strength < 0:
		strength = 0
	}
	margin := t.cfg.MomentumSizePct * t.wallet.State().Equity() * (0.5 + strength*0.5)
	if margin < t.cfg.MinTradeSize {
		return ""
	}

	side := domain.PositionLong
	if sig.Direction == domain.DirectionShort {
		side = domain.PositionShort
	}
	return t.wallet.OpenPosition("leveraged", sig.Asset, side, margin, price, domain.StrategyMomentum, t.cfg.LeveragedDefaultLeverage)
}
