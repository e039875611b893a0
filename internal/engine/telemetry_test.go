package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/tradeloop/internal/domain"
)

func TestSnapshotBuilder_Build_ComputesTicksPerSecond(t *testing.T) {
	w := NewPaperWallet(1000)
	startedAt := time.Now().Add(-10 * time.Second)
	b := NewSnapshotBuilder(w, startedAt)
	books := NewBookStore()

	snap := b.Build(startedAt.Add(10*time.Second), 20, nil, books, nil, nil, nil)
	assert.InDelta(t, 2.0, snap.TicksPerSecond, 1e-6)
	assert.InDelta(t, 10.0, snap.UptimeSeconds, 1e-6)
}

func TestSnapshotBuilder_Build_DeepCopiesWalletState(t *testing.T) {
	w := NewPaperWallet(1000)
	b := NewSnapshotBuilder(w, time.Now())
	books := NewBookStore()

	id := w.OpenPosition("leveraged", "BTC", domain.PositionLong, 20, 50000, domain.StrategyMomentum, 20)
	require.NotEmpty(t, id)

	snap := b.Build(time.Now(), 1, nil, books, nil, nil, nil)
	require.Len(t, snap.Positions, 1)

	// Mutating the snapshot's slice must not reach back into wallet state.
	snap.Positions[0].CurrentPrice = 999999
	assert.NotEqual(t, 999999.0, w.State().Positions[id].CurrentPrice)
}

func TestSnapshotBuilder_Build_SortsPositionsByOpenedAt(t *testing.T) {
	w := NewPaperWallet(1000)
	b := NewSnapshotBuilder(w, time.Now())
	books := NewBookStore()

	id1 := w.OpenPosition("leveraged", "BTC", domain.PositionLong, 10, 100, domain.StrategyMomentum, 1)
	time.Sleep(time.Millisecond)
	id2 := w.OpenPosition("leveraged", "ETH", domain.PositionLong, 10, 100, domain.StrategyMomentum, 1)
	require.NotEmpty(t, id1)
	require.NotEmpty(t, id2)

	snap := b.Build(time.Now(), 1, nil, books, nil, nil, nil)
	require.Len(t, snap.Positions, 2)
	assert.True(t, snap.Positions[0].OpenedAt.Before(snap.Positions[1].OpenedAt) || snap.Positions[0].OpenedAt.Equal(snap.Positions[1].OpenedAt))
}

func TestSnapshotBuilder_Build_FiltersTopBooksByTokenIDs(t *testing.T) {
	w := NewPaperWallet(1000)
	b := NewSnapshotBuilder(w, time.Now())
	books := NewBookStore()
	books.ApplySnapshot("tok1", []domain.BookLevel{{Price: 0.40, Size: 10}}, nil, time.Now())
	books.ApplySnapshot("tok2", []domain.BookLevel{{Price: 0.30, Size: 10}}, nil, time.Now())

	snap := b.Build(time.Now(), 1, nil, books, []string{"tok1"}, nil, nil)
	assert.Len(t, snap.TopBooks, 1)
	_, ok := snap.TopBooks["tok1"]
	assert.True(t, ok)
	_, ok = snap.TopBooks["tok2"]
	assert.False(t, ok)
}

func TestStrategyMetrics_AggregatesPerStrategy(t *testing.T) {
	trades := []domain.ClosedTrade{
		{StrategyTag: domain.StrategyMomentum, RealizedPnL: 5},
		{StrategyTag: domain.StrategyMomentum, RealizedPnL: -2},
		{StrategyTag: domain.StrategyPMArb, RealizedPnL: 1},
	}
	metrics := strategyMetrics(trades)
	require.Len(t, metrics, 2)

	var momentum domain.StrategyMetrics
	for _, m := range metrics {
		if m.Strategy == domain.StrategyMomentum {
			momentum = m
		}
	}
	assert.Equal(t, 2, momentum.TradeCount)
	assert.Equal(t, 1, momentum.Wins)
	assert.InDelta(t, 3.0, momentum.RealizedPnL, 1e-9)
}
