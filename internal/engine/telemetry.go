package engine

import (
	"sort"
	"time"

	"github.com/alejandrodnm/tradeloop/internal/domain"
)

// SnapshotBuilder assembles a read-only TelemetrySnapshot from live engine
// state (spec §4.13). It never mutates anything it reads.
type SnapshotBuilder struct {
	wallet    *PaperWallet
	startedAt time.Time
}

// NewSnapshotBuilder wires the builder to the wallet and process start time
// it reports uptime and ticks_per_second against.
func NewSnapshotBuilder(wallet *PaperWallet, startedAt time.Time) *SnapshotBuilder {
	return &SnapshotBuilder{wallet: wallet, startedAt: startedAt}
}

// Build copies the wallet state, recent trades and the requested books into
// a snapshot safe to hand to a notifier or storage adapter on another
// goroutine; the market registry contributes only its count.
func (b *SnapshotBuilder) Build(now time.Time, tickCount uint64, recentTrades []domain.ClosedTrade, books *BookStore, tokenIDs []string, markets map[string]domain.BinaryMarket, divergences []domain.DivergenceSignal) domain.TelemetrySnapshot {
	state := b.wallet.State()
	uptime := now.Sub(b.startedAt).Seconds()

	positions := make([]domain.PaperPosition, 0, len(state.Positions))
	for _, p := range state.Positions {
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].OpenedAt.Before(positions[j].OpenedAt) })

	perVenue := make(map[string]float64, len(state.PerVenueRealized))
	for k, v := range state.PerVenueRealized {
		perVenue[k] = v
	}

	equityCurve := make([]domain.EquityPoint, len(state.EquityCurve))
	copy(equityCurve, state.EquityCurve)

	trades := make([]domain.ClosedTrade, len(recentTrades))
	copy(trades, recentTrades)

	topBooks := make(map[string]domain.OrderBook, len(tokenIDs))
	for _, id := range tokenIDs {
		if book, ok := books.Get(id); ok {
			topBooks[id] = book
		}
	}

	divCopy := make([]domain.DivergenceSignal, len(divergences))
	copy(divCopy, divergences)

	var ticksPerSecond float64
	if uptime > 0 {
		ticksPerSecond = float64(tickCount) / uptime
	}

	return domain.TelemetrySnapshot{
		GeneratedAt:      now,
		UptimeSeconds:    uptime,
		TickCount:        tickCount,
		TicksPerSecond:   ticksPerSecond,
		CashBalance:      state.CashBalance,
		Equity:           state.Equity(),
		StartingBalance:  state.StartingBalance,
		TotalRealizedPnL: state.TotalRealizedPnL,
		PerVenueRealized: perVenue,
		OpenPositions:    len(positions),
		Positions:        positions,
		RecentTrades:     trades,
		EquityCurve:      equityCurve,
		StrategyMetrics:  strategyMetrics(trades),
		TopBooks:         topBooks,
		ActiveMarkets:    len(markets),
		Divergences:      divCopy,
	}
}

func strategyMetrics(trades []domain.ClosedTrade) []domain.StrategyMetrics {
	agg := make(map[domain.Strategy]*domain.StrategyMetrics)
	for _, t := range trades {
		m, ok := agg[t.StrategyTag]
		if !ok {
			m = &domain.StrategyMetrics{Strategy: t.StrategyTag}
			agg[t.StrategyTag] = m
		}
		m.TradeCount++
		m.RealizedPnL += t.RealizedPnL
		if t.RealizedPnL > 0 {
			m.Wins++
		}
	}
	out := make([]domain.StrategyMetrics, 0, len(agg))
	for _, m := range agg {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strategy < out[j].Strategy })
	return out
}
