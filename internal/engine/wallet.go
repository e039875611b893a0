package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/tradeloop/internal/domain"
)

// PaperWallet implements the simulated-execution operations of spec §4.12.
// It is the single mutator of domain.Wallet; every other engine component
// reads positions through it or through a TelemetrySnapshot copy.
type PaperWallet struct {
	state   *domain.Wallet
	onClose []func(domain.ClosedTrade)
}

// NewPaperWallet wraps a freshly created domain.Wallet.
func NewPaperWallet(startingBalance float64) *PaperWallet {
	return &PaperWallet{state: domain.NewWallet(startingBalance)}
}

// State exposes the underlying wallet for read-only use by other engine
// components that need direct position iteration (BookStore callbacks,
// TelemetrySnapshot). Mutation outside PaperWallet's own methods is a bug.
func (w *PaperWallet) State() *domain.Wallet { return w.state }

// OnClose registers a callback invoked whenever a position is closed, so
// an observer can see each ClosedTrade without coupling the wallet to it.
func (w *PaperWallet) OnClose(fn func(domain.ClosedTrade)) {
	w.onClose = append(w.onClose, fn)
}

// OpenPosition debits margin from cash and inserts a new position.
// Returns "" if margin is non-positive or exceeds available cash
// (spec §4.12 precondition; callers MUST check the empty id).
func (w *PaperWallet) OpenPosition(venue, symbol string, side domain.PositionSide, margin, entryPrice float64, strategy domain.Strategy, leverage float64) string {
	if margin <= 0 || margin > w.state.CashBalance {
		return ""
	}
	if leverage <= 0 {
		leverage = 1
	}
	id := uuid.New().String()
	w.state.CashBalance -= margin
	w.state.Positions[id] = domain.PaperPosition{
		ID:           id,
		Venue:        venue,
		Symbol:       symbol,
		Side:         side,
		Margin:       margin,
		Leverage:     leverage,
		EntryPrice:   entryPrice,
		CurrentPrice: entryPrice,
		StrategyTag:  strategy,
		OpenedAt:     time.Now(),
	}
	return id
}

// UpdatePrice recomputes unrealized PnL for a position at the given mark.
func (w *PaperWallet) UpdatePrice(id string, price float64) {
	pos, ok := w.state.Positions[id]
	if !ok {
		return
	}
	pos.CurrentPrice = price
	pos.UnrealizedPnL = pos.PnLAt(price)
	w.state.Positions[id] = pos
}

// CheckLiquidation reports whether the position would be liquidated at the
// given price, without closing it (spec §4.12: "does not close").
func (w *PaperWallet) CheckLiquidation(id string, price float64) bool {
	pos, ok := w.state.Positions[id]
	if !ok {
		return false
	}
	return pos.LiquidationTriggered(price)
}

// ClosePosition realizes PnL at exitPrice, credits cash, updates realized
// PnL buckets and removes the position. Returns the realized PnL.
func (w *PaperWallet) ClosePosition(id string, exitPrice float64, reason domain.ExitReason) float64 {
	pos, ok := w.state.Positions[id]
	if !ok {
		return 0
	}
	pnl := pos.PnLAt(exitPrice)
	w.settle(pos, exitPrice, pnl, reason)
	return pnl
}

// CloseLiquidated closes a liquidated position at a realized PnL of
// exactly -margin (spec §4.4).
func (w *PaperWallet) CloseLiquidated(id string) float64 {
	pos, ok := w.state.Positions[id]
	if !ok {
		return 0
	}
	pnl := -pos.Margin
	w.settle(pos, pos.CurrentPrice, pnl, domain.ExitLiquidation)
	return pnl
}

func (w *PaperWallet) settle(pos domain.PaperPosition, exitPrice, pnl float64, reason domain.ExitReason) {
	w.state.CashBalance += pos.Margin + pnl
	w.state.TotalRealizedPnL += pnl
	w.state.PerVenueRealized[pos.Venue] += pnl

	delete(w.state.Positions, pos.ID)
	delete(w.state.PositionMeta, pos.ID)

	trade := domain.ClosedTrade{
		PositionID:  pos.ID,
		Venue:       pos.Venue,
		Symbol:      pos.Symbol,
		StrategyTag: pos.StrategyTag,
		Side:        pos.Side,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   exitPrice,
		Margin:      pos.Margin,
		Leverage:    pos.Leverage,
		RealizedPnL: pnl,
		Reason:      reason,
		OpenedAt:    pos.OpenedAt,
		ClosedAt:    time.Now(),
	}
	for _, fn := range w.onClose {
		fn(trade)
	}
}

// CheckAndCloseExpired closes any position open longer than timeout,
// fetching its current price via getPrice (spec §4.12).
func (w *PaperWallet) CheckAndCloseExpired(timeout time.Duration, getPrice func(domain.PaperPosition) (float64, bool), now time.Time) int {
	closed := 0
	for id, pos := range w.state.Positions {
		if now.Sub(pos.OpenedAt) <= timeout {
			continue
		}
		price, ok := getPrice(pos)
		if !ok {
			continue
		}
		w.ClosePosition(id, price, domain.ExitTimeExit)
		closed++
	}
	return closed
}

// RecordEquity appends the current equity to the curve, trimming to the
// cap (spec §4.12).
func (w *PaperWallet) RecordEquity(now time.Time) {
	w.state.PushEquityPoint(now)
}
