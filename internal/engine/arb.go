package engine

import (
	"time"

	"github.com/alejandrodnm/tradeloop/internal/domain"
)

// CompleteSetArbDetector looks for markets where buying both outcomes costs
// less than the guaranteed $1 payout (spec §4.7). Invoked once per tick.
type CompleteSetArbDetector struct {
	cfg    Config
	wallet *PaperWallet
}

// NewCompleteSetArbDetector wires the detector to the wallet it trades on.
func NewCompleteSetArbDetector(cfg Config, wallet *PaperWallet) *CompleteSetArbDetector {
	return &CompleteSetArbDetector{cfg: cfg, wallet: wallet}
}

// Scan evaluates every tracked market not already arbitraged.
func (d *CompleteSetArbDetector) Scan(markets map[string]domain.BinaryMarket, arbed domain.CompletedSetArbs, getBook func(tokenID string) (domain.OrderBook, bool), now time.Time) {
	for _, m := range markets {
		if arbed.Has(m.Slug) || m.TimeToEnd(now) < 20*time.Second {
			continue
		}
		d.tryArb(m, arbed, getBook)
	}
}

func (d *CompleteSetArbDetector) tryArb(m domain.BinaryMarket, arbed domain.CompletedSetArbs, getBook func(string) (domain.OrderBook, bool)) {
	upBook, ok := getBook(m.UpTokenID)
	if !ok || len(upBook.Asks) == 0 {
		return
	}
	dnBook, ok := getBook(m.DownTokenID)
	if !ok || len(dnBook.Asks) == 0 {
		return
	}

	askUp, askDn := upBook.BestAsk(), dnBook.BestAsk()
	cost := askUp + askDn
	if cost >= d.cfg.ArbCostThreshold {
		return
	}
	edge := 1 - cost

	maxShares := upBook.BestAskSize()
	if dnBook.BestAskSize() < maxShares {
		maxShares = dnBook.BestAskSize()
	}

	equity := d.wallet.State().Equity()
	cash := d.wallet.State().CashBalance
	targetNotional := d.cfg.ArbEquityFraction * equity
	if cashCap := d.cfg.ArbCashFraction * cash; cashCap < targetNotional {
		targetNotional = cashCap
	}
	liquidityNotional := maxShares * ((askUp + askDn) / 2)
	if liquidityNotional < targetNotional {
		targetNotional = liquidityNotional
	}

	avgAsk := (askUp + askDn) / 2
	if avgAsk == 0 {
		return
	}
	shares := targetNotional / avgAsk
	if shares > maxShares {
		shares = maxShares
	}
	if shares < d.cfg.ArbMinShares {
		return
	}

	lockedProfit := shares * edge
	if lockedProfit < d.cfg.ArbMinProfitUSD {
		return
	}

	marginUp := shares * askUp
	marginDn := shares * askDn

	upID := d.wallet.OpenPosition("prediction-market", m.Asset, domain.PositionLong, marginUp, askUp, domain.StrategyPMArb, 1)
	if upID == "" {
		return
	}
	dnID := d.wallet.OpenPosition("prediction-market", m.Asset, domain.PositionLong, marginDn, askDn, domain.StrategyPMArb, 1)
	if dnID == "" {
		// Undo the first leg at its own entry price — no price movement,
		// so the close is a realized PnL of exactly 0 (spec §4.7).
		d.wallet.ClosePosition(upID, askUp, domain.ExitSettlement)
		return
	}

	d.wallet.State().Bets[upID] = domain.BinaryBet{
		PositionID: upID, MarketSlug: m.Slug, Asset: m.Asset, Side: domain.SideUp,
		TokenID: m.UpTokenID, EntryPrice: askUp, CostBasis: marginUp, ResolutionTS: m.EndTS,
	}
	d.wallet.State().Bets[dnID] = domain.BinaryBet{
		PositionID: dnID, MarketSlug: m.Slug, Asset: m.Asset, Side: domain.SideDown,
		TokenID: m.DownTokenID, EntryPrice: askDn, CostBasis: marginDn, ResolutionTS: m.EndTS,
	}
	d.wallet.State().ArbPairs[m.Slug] = [2]string{upID, dnID}
	arbed.Add(m.Slug)
}
