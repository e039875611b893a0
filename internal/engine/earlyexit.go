package engine

import (
	"time"

	"github.com/alejandrodnm/tradeloop/internal/domain"
)

// EarlyExit runs once per tick over every open binary bet that isn't part
// of a complete-set arb pair, applying the tier-specific take-profit,
// trailing-stop, and tier-dependent hard-stop rules (spec §4.10).
type EarlyExit struct {
	cfg    Config
	wallet *PaperWallet
	lookup func(slug string) (domain.BinaryMarket, bool)
}

// NewEarlyExit wires the early-exit pass to the wallet it closes positions on.
func NewEarlyExit(cfg Config, wallet *PaperWallet) *EarlyExit {
	return &EarlyExit{cfg: cfg, wallet: wallet}
}

// SetMarketLookup wires the slug->market resolver used to evaluate the
// near-expiry cut for moderate entries.
func (e *EarlyExit) SetMarketLookup(fn func(slug string) (domain.BinaryMarket, bool)) {
	e.lookup = fn
}

// Run evaluates every tracked bet against the current best bid, closing
// any that trip a take-profit, trailing, or hard stop-loss rule.
// getBook resolves the live book for a token id.
func (e *EarlyExit) Run(getBook func(tokenID string) (domain.OrderBook, bool), now time.Time) {
	for id, bet := range e.wallet.State().Bets {
		pos, ok := e.wallet.State().Positions[id]
		if !ok || pos.StrategyTag == domain.StrategyPMArb {
			continue
		}
		book, ok := getBook(bet.TokenID)
		if !ok {
			continue
		}
		bestBid := book.BestBid()
		if bestBid == 0 {
			continue
		}
		if bestBid > bet.MaxPriceSeen {
			bet.MaxPriceSeen = bestBid
			e.wallet.State().Bets[id] = bet
		}

		gain := bet.Gain(bestBid)
		if bet.IsCheap() {
			e.evaluateCheap(id, bet, bestBid, gain)
			continue
		}
		e.evaluateModerate(id, bet, bestBid, gain, now)
	}
}

func (e *EarlyExit) evaluateCheap(id string, bet domain.BinaryBet, bestBid, gain float64) {
	if gain >= e.cfg.CheapTakeProfit {
		e.close(id, bestBid, domain.ExitTakeProfit)
		return
	}

	peakGain := (bet.MaxPriceSeen - bet.EntryPrice) / bet.EntryPrice
	if peakGain >= e.cfg.CheapTrailTrigger {
		trail := bet.EntryPrice + (bet.MaxPriceSeen-bet.EntryPrice)*e.cfg.CheapTrailGiveback
		if bestBid <= trail {
			e.close(id, bestBid, domain.ExitTrailGiveback)
			return
		}
	}

	if gain <= e.cfg.CheapStopLoss {
		e.close(id, bestBid, domain.ExitHardSL)
	}
}

func (e *EarlyExit) evaluateModerate(id string, bet domain.BinaryBet, bestBid, gain float64, now time.Time) {
	if e.lookup == nil {
		return
	}
	m, ok := e.lookup(bet.MarketSlug)
	if !ok {
		return
	}
	timeToEnd := m.TimeToEnd(now)

	if timeToEnd <= e.cfg.NearExpiryWindow {
		if gain < e.cfg.ModerateNearExpiryCut {
			e.close(id, bestBid, domain.ExitNearExpiry)
		}
		return
	}

	if timeToEnd > 60*time.Second && gain <= e.cfg.ModerateStopLossFar {
		e.close(id, bestBid, domain.ExitHardSL)
	}
	// Between NearExpiryWindow and 60s: hold to resolution (spec §4.10).
}

func (e *EarlyExit) close(id string, exitPrice float64, reason domain.ExitReason) {
	e.wallet.ClosePosition(id, exitPrice, reason)
	delete(e.wallet.State().Bets, id)
}
