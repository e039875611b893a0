package engine

import (
	"time"

	"github.com/alejandrodnm/tradeloop/internal/domain"
)

// Settlement resolves binary bets once their market has reached
// resolution, paying the winning side 1.0 and the losing side 0.001
// (spec §4.11). It runs once per tick, after early-exit.
type Settlement struct {
	cfg    Config
	wallet *PaperWallet
	lookup func(slug string) (domain.BinaryMarket, bool)
}

// NewSettlement wires the settlement pass to the wallet it resolves bets on.
func NewSettlement(cfg Config, wallet *PaperWallet) *Settlement {
	return &Settlement{cfg: cfg, wallet: wallet}
}

// SetMarketLookup wires the slug->market resolver used to read each bet's
// market start price and resolution time.
func (s *Settlement) SetMarketLookup(fn func(slug string) (domain.BinaryMarket, bool)) {
	s.lookup = fn
}

// Run settles every bet whose market has reached its resolution time,
// using spotPrice to read the current price of the underlying asset.
func (s *Settlement) Run(spotPrice func(asset string) (float64, bool), now time.Time) {
	for id, bet := range s.wallet.State().Bets {
		if now.Before(bet.ResolutionTS) {
			continue
		}
		s.settleOne(id, bet, spotPrice, now)
	}
}

func (s *Settlement) settleOne(id string, bet domain.BinaryBet, spotPrice func(string) (float64, bool), now time.Time) {
	var market domain.BinaryMarket
	haveMarket := false
	if s.lookup != nil {
		market, haveMarket = s.lookup(bet.MarketSlug)
	}

	startPrice := market.StartPrice
	if !haveMarket || startPrice == 0 {
		// Never captured a start price (market discovered after the window
		// opened). Wait out SettlementGrace past resolution before forcing
		// a total loss.
		if now.Before(bet.ResolutionTS.Add(s.cfg.SettlementGrace)) {
			return
		}
		s.close(id, 0.001, domain.ExitSettlement)
		return
	}

	currentPrice, ok := spotPrice(bet.Asset)
	if !ok {
		if now.Before(bet.ResolutionTS.Add(s.cfg.SettlementGrace)) {
			return
		}
		s.close(id, 0.001, domain.ExitSettlement)
		return
	}

	upWon := currentPrice >= startPrice
	won := (bet.Side == domain.SideUp) == upWon

	exitPrice := 0.001
	if won {
		exitPrice = 1.0
	}
	s.close(id, exitPrice, domain.ExitSettlement)
}

func (s *Settlement) close(id string, exitPrice float64, reason domain.ExitReason) {
	s.wallet.ClosePosition(id, exitPrice, reason)
	delete(s.wallet.State().Bets, id)
}
