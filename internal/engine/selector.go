package engine

import (
	"sort"
	"time"

	"github.com/alejandrodnm/tradeloop/internal/domain"
)

// entryTier classifies a candidate's best-ask price (spec §4.6).
type entryTier int

const (
	tierReject entryTier = iota
	tierCheap
	tierModerate
)

func classifyTier(askPrice float64) entryTier {
	switch {
	case askPrice > 0.10 && askPrice <= 0.45:
		return tierCheap
	case askPrice > 0.45 && askPrice <= 0.65:
		return tierModerate
	default:
		return tierReject
	}
}

// candidate is a surviving market+side combination for one momentum signal.
type candidate struct {
	market  domain.BinaryMarket
	side    domain.Side
	tokenID string
	book    domain.OrderBook
	tier    entryTier
	score   float64
}

// BinaryBetSelector opens single-sided binary-market bets in reaction to a
// confirmed momentum signal (spec §4.6).
type BinaryBetSelector struct {
	cfg      Config
	wallet   *PaperWallet
	cooldown map[string]time.Time // asset -> cooldown expiry
}

// NewBinaryBetSelector wires the selector to the wallet it opens
// positions on.
func NewBinaryBetSelector(cfg Config, wallet *PaperWallet) *BinaryBetSelector {
	return &BinaryBetSelector{cfg: cfg, wallet: wallet, cooldown: make(map[string]time.Time)}
}

// OnSignal evaluates a confirmed MomentumSignal against every tracked
// market and opens at most one position. getBook resolves the live book
// for a token id. Returns the opened position id, or "" if nothing qualified.
func (s *BinaryBetSelector) OnSignal(sig domain.MomentumSignal, markets map[string]domain.BinaryMarket, betted domain.BettedSlugs, getBook func(tokenID string) (domain.OrderBook, bool), now time.Time) string {
	if !sig.Confirmed {
		return ""
	}
	if until, ok := s.cooldown[sig.Asset]; ok && now.Before(until) {
		return ""
	}
	if countOpenBets(s.wallet.State()) >= s.cfg.MaxSimultaneousBets {
		return ""
	}

	side := domain.SideForDirection(sig.Direction)
	candidates := s.collectCandidates(sig, side, markets, betted, getBook, now)
	if len(candidates) == 0 {
		return ""
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	best := candidates[0]

	finalSize := s.sizePosition(sig, best, now)
	if finalSize < s.cfg.MinTradeSize {
		return ""
	}

	id := s.wallet.OpenPosition(
		"prediction-market", best.market.Asset,
		positionSideForSide(side),
		finalSize, best.book.BestAsk(),
		domain.StrategyPMUpDown, 1,
	)
	if id == "" {
		return ""
	}

	s.wallet.State().Bets[id] = domain.BinaryBet{
		PositionID:   id,
		MarketSlug:   best.market.Slug,
		Asset:        best.market.Asset,
		Side:         side,
		TokenID:      best.tokenID,
		EntryPrice:   best.book.BestAsk(),
		CostBasis:    finalSize,
		ResolutionTS: best.market.EndTS,
		MaxPriceSeen: best.book.BestAsk(),
	}
	betted.Add(best.market.Slug)
	s.cooldown[sig.Asset] = now.Add(s.cfg.PerAssetCooldown)
	return id
}

func (s *BinaryBetSelector) collectCandidates(sig domain.MomentumSignal, side domain.Side, markets map[string]domain.BinaryMarket, betted domain.BettedSlugs, getBook func(string) (domain.OrderBook, bool), now time.Time) []candidate {
	var out []candidate
	for _, m := range markets {
		if m.Asset != sig.Asset || betted.Has(m.Slug) {
			continue
		}
		floor := 60 * time.Second
		if m.Timeframe == domain.Timeframe15m {
			floor = 90 * time.Second
		}
		if m.TimeToEnd(now) < floor {
			continue
		}
		if m.ElapsedFraction(now) > 0.8 {
			continue
		}

		tokenID := m.TokenForSide(side)
		book, ok := getBook(tokenID)
		if !ok || len(book.Asks) == 0 {
			continue
		}
		if book.BestAskSize() < 10 {
			continue
		}

		ask := book.BestAsk()
		tier := classifyTier(ask)
		switch tier {
		case tierCheap:
			if sig.Strength < 0.40 {
				continue
			}
		case tierModerate:
			if book.Mid() < 0.48 {
				continue
			}
		default:
			continue
		}

		timeRemainingPct := float64(m.TimeToEnd(now)) / float64(m.EndTS.Sub(m.StartTS))
		score := 1/ask + timeRemainingPct*0.2 + sig.Strength*0.5
		if m.Timeframe == domain.Timeframe15m {
			score += 0.3
		}
		if tier == tierCheap {
			score += 1.0
		}

		out = append(out, candidate{market: m, side: side, tokenID: tokenID, book: book, tier: tier, score: score})
	}
	return out
}

func (s *BinaryBetSelector) sizePosition(sig domain.MomentumSignal, c candidate, now time.Time) float64 {
	baseSizePct := s.cfg.PMBetSizePct + (sig.Strength-0.2)*0.0625
	if baseSizePct > s.cfg.PMMaxSizePct {
		baseSizePct = s.cfg.PMMaxSizePct
	}

	elapsedPct := c.market.ElapsedFraction(now)
	timeScale := 1.0 - elapsedPct*0.5
	if timeScale < 0.6 {
		timeScale = 0.6
	}

	sizePct := baseSizePct * timeScale
	if sizePct > s.cfg.PMMaxSizePct {
		sizePct = s.cfg.PMMaxSizePct
	}

	equity := s.wallet.State().Equity()
	size := sizePct * equity

	availableCash := s.wallet.State().CashBalance - s.cfg.ReservedCashFloor
	if size > availableCash {
		size = availableCash
	}

	liquidityLimit := c.book.BestAskSize() * c.book.BestAsk()
	if size > liquidityLimit {
		size = liquidityLimit
	}
	if size < 0 {
		size = 0
	}
	return size
}

func countOpenBets(w *domain.Wallet) int {
	return len(w.Bets)
}

func positionSideForSide(side domain.Side) domain.PositionSide {
	if side == domain.SideUp {
		return domain.PositionLong
	}
	return domain.PositionShort
}
