package engine

import (
	"time"

	"github.com/alejandrodnm/tradeloop/internal/domain"
)

type midSample struct {
	mid float64
	ts  time.Time
}

// FlashCrashDetector fades a sudden intra-window drop of a binary token's
// mid price (spec §4.8). It runs on every WS book update, not just ticks.
type FlashCrashDetector struct {
	cfg      Config
	wallet   *PaperWallet
	history  map[string][]midSample // tokenID -> rolling mid history
	cooldown map[string]time.Time   // asset -> cooldown expiry, shared concept with selector
}

// NewFlashCrashDetector wires the detector to the wallet it trades on.
func NewFlashCrashDetector(cfg Config, wallet *PaperWallet) *FlashCrashDetector {
	return &FlashCrashDetector{
		cfg:      cfg,
		wallet:   wallet,
		history:  make(map[string][]midSample),
		cooldown: make(map[string]time.Time),
	}
}

// OnBookUpdate appends a mid sample and checks for a flash-crash trigger.
// market is the BinaryMarket the token belongs to (nil if untracked, e.g.
// the token is not yet a known binary market).
func (d *FlashCrashDetector) OnBookUpdate(tokenID string, book domain.OrderBook, market *domain.BinaryMarket, side domain.Side, betted domain.BettedSlugs, now time.Time) {
	mid := book.Mid()
	hist := append(d.history[tokenID], midSample{mid: mid, ts: now})
	cutoff := now.Add(-d.cfg.FlashCrashWindow)
	trimmed := hist[:0]
	for _, s := range hist {
		if s.ts.After(cutoff) {
			trimmed = append(trimmed, s)
		}
	}
	d.history[tokenID] = trimmed

	if len(trimmed) < d.cfg.FlashCrashMinSamples {
		return
	}
	if mid <= 0.05 || mid >= 0.95 {
		return
	}
	if market == nil || betted.Has(market.Slug) {
		return
	}
	if market.TimeToEnd(now) < 30*time.Second {
		return
	}
	if until, ok := d.cooldown[market.Asset]; ok && now.Before(until) {
		return
	}

	recentCutoff := now.Add(-d.cfg.FlashCrashRecentWin)
	var recentMax float64
	for _, s := range trimmed {
		if s.ts.After(recentCutoff) && s.mid > recentMax {
			recentMax = s.mid
		}
	}
	if recentMax == 0 {
		return
	}

	drop := (recentMax - mid) / recentMax
	if drop < d.cfg.FlashCrashDropPct {
		return
	}

	equity := d.wallet.State().Equity()
	size := d.cfg.FlashCrashEquityPct * equity
	if cash := d.wallet.State().CashBalance; size > cash {
		size = cash
	}
	if size <= 0 {
		return
	}

	entryPrice := book.BestAsk()
	if entryPrice == 0 {
		entryPrice = mid
	}

	id := d.wallet.OpenPosition("prediction-market", market.Asset, positionSideForSide(side), size, entryPrice, domain.StrategyPMFlashCrash, 1)
	if id == "" {
		return
	}
	d.wallet.State().Bets[id] = domain.BinaryBet{
		PositionID: id, MarketSlug: market.Slug, Asset: market.Asset, Side: side,
		TokenID: tokenID, EntryPrice: entryPrice, CostBasis: size, ResolutionTS: market.EndTS,
		MaxPriceSeen: entryPrice,
	}
	d.cooldown[market.Asset] = now.Add(d.cfg.PerAssetCooldown)
}
