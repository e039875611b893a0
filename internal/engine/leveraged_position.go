package engine

import (
	"time"

	"github.com/alejandrodnm/tradeloop/internal/domain"
)

// LeveragedPositionMgr runs the per-tick state machine for leveraged
// (strategy=momentum) positions: liquidation, hard stop-loss, trailing
// stop, and time exit, in that precedence order (spec §4.4).
type LeveragedPositionMgr struct {
	cfg    Config
	wallet *PaperWallet
}

// NewLeveragedPositionMgr wires the manager to the wallet it mutates.
func NewLeveragedPositionMgr(cfg Config, wallet *PaperWallet) *LeveragedPositionMgr {
	return &LeveragedPositionMgr{cfg: cfg, wallet: wallet}
}

// MarkAndManage marks every open momentum position to the given price and
// applies the state machine, closing positions that terminate. now is
// passed explicitly so tests are deterministic.
func (m *LeveragedPositionMgr) MarkAndManage(symbol string, price float64, now time.Time) {
	for id, pos := range m.wallet.state.Positions {
		if pos.StrategyTag != domain.StrategyMomentum || pos.Symbol != symbol {
			continue
		}
		m.wallet.UpdatePrice(id, price)
		m.manageOne(id, price, now)
	}
}

func (m *LeveragedPositionMgr) manageOne(id string, price float64, now time.Time) {
	pos, ok := m.wallet.state.Positions[id]
	if !ok {
		return
	}
	meta := m.wallet.state.PositionMeta[id]
	meta.PositionID = id

	if pos.Side == domain.PositionLong {
		if price > meta.MaxPrice || meta.MaxPrice == 0 {
			meta.MaxPrice = price
		}
	} else {
		if price < meta.MinPrice || meta.MinPrice == 0 {
			meta.MinPrice = price
		}
	}

	// Ordering: liquidation before SL, SL before trail, trail before time exit.
	if pos.LiquidationTriggered(price) {
		m.wallet.CloseLiquidated(id)
		return
	}

	if m.hardSLTriggered(pos, price) {
		m.wallet.state.PositionMeta[id] = meta
		m.wallet.ClosePosition(id, price, domain.ExitHardSL)
		return
	}

	profitFraction := pos.PnLAt(price) / pos.Margin
	if !meta.TrailActive && profitFraction >= m.cfg.TrailActivate {
		meta.TrailActive = true
	}

	if meta.TrailActive {
		maxProfit := m.peakProfitFraction(pos, meta)
		giveback := maxProfit - profitFraction
		if maxProfit > 0 && giveback > m.cfg.TrailGiveback*maxProfit {
			m.wallet.state.PositionMeta[id] = meta
			m.wallet.ClosePosition(id, price, domain.ExitTrailGiveback)
			return
		}
	}

	if now.Sub(pos.OpenedAt) > m.cfg.MaxHold {
		m.wallet.state.PositionMeta[id] = meta
		m.wallet.ClosePosition(id, price, domain.ExitTimeExit)
		return
	}

	m.wallet.state.PositionMeta[id] = meta
}

func (m *LeveragedPositionMgr) hardSLTriggered(pos domain.PaperPosition, price float64) bool {
	adverse := (price - pos.EntryPrice) / pos.EntryPrice
	if pos.Side == domain.PositionShort {
		adverse = -adverse
	}
	// The tolerance lets a price sitting exactly on the SL line trigger even
	// when float64 rounding leaves the ratio a hair above -SLPct.
	return adverse <= -m.cfg.SLPct+1e-12
}

// peakProfitFraction recomputes the best profit fraction reached so far
// from the tracked extreme price, used to evaluate trailing giveback.
func (m *LeveragedPositionMgr) peakProfitFraction(pos domain.PaperPosition, meta domain.PositionMeta) float64 {
	extreme := meta.MaxPrice
	if pos.Side == domain.PositionShort {
		extreme = meta.MinPrice
	}
	if extreme == 0 {
		return 0
	}
	return pos.PnLAt(extreme) / pos.Margin
}
