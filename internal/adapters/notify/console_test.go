package notify_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/tradeloop/internal/adapters/notify"
	"github.com/alejandrodnm/tradeloop/internal/domain"
)

func TestConsole_Publish_WithOpenPositions(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	snap := domain.TelemetrySnapshot{
		GeneratedAt:      time.Now(),
		TickCount:        42,
		TicksPerSecond:   1.98,
		Equity:           1050.25,
		CashBalance:      900.00,
		TotalRealizedPnL: 50.25,
		OpenPositions:    1,
		ActiveMarkets:    3,
		Positions: []domain.PaperPosition{
			{Symbol: "BTC", StrategyTag: domain.StrategyMomentum, Side: domain.PositionLong,
				EntryPrice: 50000, CurrentPrice: 50500, Margin: 20, Leverage: 20, UnrealizedPnL: 4},
		},
		StrategyMetrics: []domain.StrategyMetrics{
			{Strategy: domain.StrategyMomentum, TradeCount: 3, Wins: 2, RealizedPnL: 12.5},
		},
	}

	err := c.Publish(context.Background(), snap)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "tick=42")
	assert.Contains(t, out, "BTC")
	assert.Contains(t, out, "momentum")
	assert.Contains(t, out, "trades=3")
}

func TestConsole_Publish_NoOpenPositions_SkipsTable(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	snap := domain.TelemetrySnapshot{
		GeneratedAt: time.Now(),
		TickCount:   1,
		Equity:      1000,
		CashBalance: 1000,
	}

	err := c.Publish(context.Background(), snap)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "tick=1")
}
