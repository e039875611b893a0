package engine

import (
	"time"

	"github.com/alejandrodnm/tradeloop/internal/domain"
)

// RealtimeExitGuard fires on every binary-market book callback, ahead of
// the 500ms tick, to catch stop-losses faster than the tick cadence would
// allow (spec §4.9).
type RealtimeExitGuard struct {
	cfg    Config
	wallet *PaperWallet
	lookup func(slug string) (domain.BinaryMarket, bool)
}

// NewRealtimeExitGuard wires the guard to the wallet it closes positions on.
func NewRealtimeExitGuard(cfg Config, wallet *PaperWallet) *RealtimeExitGuard {
	return &RealtimeExitGuard{cfg: cfg, wallet: wallet}
}

// SetMarketLookup wires the slug->market resolver used to pick the
// time-dependent moderate-entry threshold.
func (g *RealtimeExitGuard) SetMarketLookup(fn func(slug string) (domain.BinaryMarket, bool)) {
	g.lookup = fn
}

// OnBookUpdate closes the first matching bet whose gain breaches its
// stop-loss threshold. Only the first match per callback is closed — map
// iteration order is unspecified in Go, so "first" here means "the first
// bet the guard happens to visit", matching the source's intent of
// bailing out on first hit rather than scanning exhaustively.
func (g *RealtimeExitGuard) OnBookUpdate(tokenID string, book domain.OrderBook, now time.Time) {
	bestBid := book.BestBid()
	if bestBid == 0 {
		return
	}

	for id, bet := range g.wallet.State().Bets {
		if bet.TokenID != tokenID {
			continue
		}
		if pos, ok := g.wallet.State().Positions[id]; ok && pos.StrategyTag == domain.StrategyPMArb {
			continue
		}

		gain := bet.Gain(bestBid)
		if gain <= g.threshold(bet, now) {
			g.wallet.ClosePosition(id, bestBid, domain.ExitStopLossRT)
			delete(g.wallet.State().Bets, id)
			return
		}
	}
}

func (g *RealtimeExitGuard) threshold(bet domain.BinaryBet, now time.Time) float64 {
	if bet.IsCheap() {
		return g.cfg.CheapStopLoss
	}
	if g.lookup != nil {
		if m, ok := g.lookup(bet.MarketSlug); ok && m.TimeToEnd(now) > g.cfg.RealtimeNearExpiryWindow {
			return g.cfg.ModerateStopLossFar
		}
	}
	return g.cfg.ModerateStopLossRT
}
