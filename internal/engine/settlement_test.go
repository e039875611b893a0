package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/tradeloop/internal/domain"
)

func openSettlementBet(t *testing.T, w *PaperWallet, side domain.Side, asset string, slug string, resolutionTS time.Time) string {
	t.Helper()
	id := w.OpenPosition("prediction-market", asset, domain.PositionLong, 20, 0.40, domain.StrategyPMUpDown, 1)
	require.NotEmpty(t, id)
	w.State().Bets[id] = domain.BinaryBet{
		PositionID: id, MarketSlug: slug, Asset: asset, Side: side,
		TokenID: "tok1", EntryPrice: 0.40, CostBasis: 20, ResolutionTS: resolutionTS,
	}
	return id
}

func TestSettlement_NotYetDue_DoesNothing(t *testing.T) {
	cfg := DefaultConfig()
	w := NewPaperWallet(1000)
	s := NewSettlement(cfg, w)
	now := time.Now()

	id := openSettlementBet(t, w, domain.SideUp, "BTC", "slug1", now.Add(time.Minute))
	s.Run(func(string) (float64, bool) { return 50000, true }, now)

	_, stillOpen := w.State().Bets[id]
	assert.True(t, stillOpen)
}

func TestSettlement_UpSide_WinsWhenPriceRose(t *testing.T) {
	cfg := DefaultConfig()
	w := NewPaperWallet(1000)
	s := NewSettlement(cfg, w)
	now := time.Now()

	slug := "slug1"
	id := openSettlementBet(t, w, domain.SideUp, "BTC", slug, now.Add(-time.Second))
	s.SetMarketLookup(func(string) (domain.BinaryMarket, bool) {
		return domain.BinaryMarket{Slug: slug, StartPrice: 50000}, true
	})

	var got domain.ClosedTrade
	w.OnClose(func(t domain.ClosedTrade) { got = t })
	s.Run(func(string) (float64, bool) { return 50100, true }, now)

	_, stillOpen := w.State().Bets[id]
	assert.False(t, stillOpen)
	assert.Equal(t, domain.ExitSettlement, got.Reason)
	assert.InDelta(t, 1.0, got.ExitPrice, 1e-9)
}

func TestSettlement_DownSide_LosesWhenPriceRose(t *testing.T) {
	cfg := DefaultConfig()
	w := NewPaperWallet(1000)
	s := NewSettlement(cfg, w)
	now := time.Now()

	slug := "slug1"
	openSettlementBet(t, w, domain.SideDown, "BTC", slug, now.Add(-time.Second))
	s.SetMarketLookup(func(string) (domain.BinaryMarket, bool) {
		return domain.BinaryMarket{Slug: slug, StartPrice: 50000}, true
	})

	var got domain.ClosedTrade
	w.OnClose(func(t domain.ClosedTrade) { got = t })
	s.Run(func(string) (float64, bool) { return 50100, true }, now)

	assert.InDelta(t, 0.001, got.ExitPrice, 1e-9)
}

func TestSettlement_NoStartPrice_GraceWindowDelaysTotalLoss(t *testing.T) {
	cfg := DefaultConfig()
	w := NewPaperWallet(1000)
	s := NewSettlement(cfg, w)
	now := time.Now()

	slug := "slug1"
	id := openSettlementBet(t, w, domain.SideUp, "BTC", slug, now.Add(-time.Second))
	s.SetMarketLookup(func(string) (domain.BinaryMarket, bool) {
		return domain.BinaryMarket{Slug: slug, StartPrice: 0}, true // never captured
	})

	s.Run(func(string) (float64, bool) { return 50100, true }, now)
	_, stillOpen := w.State().Bets[id]
	assert.True(t, stillOpen) // still within SettlementGrace (30s)

	var got domain.ClosedTrade
	w.OnClose(func(t domain.ClosedTrade) { got = t })
	s.Run(func(string) (float64, bool) { return 50100, true }, now.Add(31*time.Second))
	_, stillOpen2 := w.State().Bets[id]
	assert.False(t, stillOpen2)
	assert.InDelta(t, 0.001, got.ExitPrice, 1e-9)
}

func TestSettlement_NoSpotPrice_GraceWindowThenTotalLoss(t *testing.T) {
	cfg := DefaultConfig()
	w := NewPaperWallet(1000)
	s := NewSettlement(cfg, w)
	now := time.Now()

	slug := "slug1"
	id := openSettlementBet(t, w, domain.SideUp, "BTC", slug, now.Add(-time.Second))
	s.SetMarketLookup(func(string) (domain.BinaryMarket, bool) {
		return domain.BinaryMarket{Slug: slug, StartPrice: 50000}, true
	})

	s.Run(func(string) (float64, bool) { return 0, false }, now.Add(31*time.Second))
	_, stillOpen := w.State().Bets[id]
	assert.False(t, stillOpen)
}
