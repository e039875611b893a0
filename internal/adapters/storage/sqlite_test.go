package storage_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/tradeloop/internal/adapters/storage"
	"github.com/alejandrodnm/tradeloop/internal/domain"
)

func makeTrade(id string, closedAt time.Time) domain.ClosedTrade {
	return domain.ClosedTrade{
		PositionID:  id,
		Venue:       "leveraged",
		Symbol:      "BTC",
		StrategyTag: domain.StrategyMomentum,
		Side:        domain.PositionLong,
		EntryPrice:  50000,
		ExitPrice:   50500,
		Margin:      20,
		Leverage:    20,
		RealizedPnL: 4,
		Reason:      domain.ExitTakeProfit,
		OpenedAt:    closedAt.Add(-time.Minute),
		ClosedAt:    closedAt,
	}
}

func openTestDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.ApplySchema(context.Background()))
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteStorage_SaveAndRetrieveTrade(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	trade := makeTrade("pos1", time.Now().UTC())
	require.NoError(t, db.SaveTrade(ctx, trade))

	trades, err := db.RecentTrades(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "pos1", trades[0].PositionID)
	assert.Equal(t, domain.ExitTakeProfit, trades[0].Reason)
	assert.InDelta(t, 4.0, trades[0].RealizedPnL, 1e-9)
}

func TestSQLiteStorage_SaveTrade_IdempotentOnConflict(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	closedAt := time.Now().UTC()
	require.NoError(t, db.SaveTrade(ctx, makeTrade("pos1", closedAt)))
	require.NoError(t, db.SaveTrade(ctx, makeTrade("pos1", closedAt))) // same id, no-op

	trades, err := db.RecentTrades(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestSQLiteStorage_RecentTrades_OrdersNewestFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, db.SaveTrade(ctx, makeTrade("old", now.Add(-time.Hour))))
	require.NoError(t, db.SaveTrade(ctx, makeTrade("new", now)))

	trades, err := db.RecentTrades(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "new", trades[0].PositionID)
	assert.Equal(t, "old", trades[1].PositionID)
}

func TestSQLiteStorage_RecentTrades_RespectsLimit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, db.SaveTrade(ctx, makeTrade(fmt.Sprintf("pos-%d", i), now.Add(time.Duration(i)*time.Second))))
	}

	trades, err := db.RecentTrades(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, trades, 2)
}

func TestSQLiteStorage_SaveEquityPoint_UpsertsOnSameTimestamp(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	ts := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, db.SaveEquityPoint(ctx, domain.EquityPoint{TS: ts, Equity: 1000}))
	require.NoError(t, db.SaveEquityPoint(ctx, domain.EquityPoint{TS: ts, Equity: 1050}))
	// No direct reader for equity_curve is exposed; this exercises the upsert
	// path without erroring, matching SaveTrade's conflict-handling shape.
}

func TestSQLiteStorage_RecentTrades_EmptyWhenNoneSaved(t *testing.T) {
	db := openTestDB(t)
	trades, err := db.RecentTrades(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, trades)
}
