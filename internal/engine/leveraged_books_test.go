package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/tradeloop/internal/domain"
	"github.com/alejandrodnm/tradeloop/internal/ports"
)

var errOrderBookFetch = errors.New("order book fetch failed")

type failingExchangeClient struct {
	failSymbol string
}

func (f *failingExchangeClient) GetOrderBook(_ context.Context, symbol string) (*domain.OrderBook, error) {
	if symbol == f.failSymbol {
		return nil, errOrderBookFetch
	}
	return &domain.OrderBook{Venue: "leveraged", TokenID: symbol,
		Bids: []domain.BookLevel{{Price: 1, Size: 1}}, Asks: []domain.BookLevel{{Price: 2, Size: 1}}}, nil
}
func (f *failingExchangeClient) PlaceLimit(context.Context, string, domain.PositionSide, float64, float64) error {
	return ports.ErrNotConfigured
}
func (f *failingExchangeClient) PlaceMarket(context.Context, string, domain.PositionSide, float64) error {
	return ports.ErrNotConfigured
}
func (f *failingExchangeClient) Cancel(context.Context, string) error { return ports.ErrNotConfigured }
func (f *failingExchangeClient) IsConnected() bool                   { return true }

type staticDiscoveryClient struct{}

func (staticDiscoveryClient) FetchMarket(context.Context, string) (ports.MarketMetadata, error) {
	return ports.MarketMetadata{Found: false}, nil
}

func TestRefreshLeveragedBooks_DegradesVenueAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Assets = []string{"BTC", "ETH"}
	cfg.LeveragedBatchSize = 2
	cfg.VenueFailureThreshold = 3
	cfg.VenueCooldown = time.Hour

	client := &failingExchangeClient{failSymbol: "BTC"}
	e := New(cfg, client, nil, nil, staticDiscoveryClient{})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		e.refreshLeveragedBooks(ctx)
	}

	require.Equal(t, 3, e.venueFailures["BTC"])
	until, degraded := e.venueDegradedUntil["BTC"]
	require.True(t, degraded)
	assert.True(t, until.After(time.Now()))

	e.venueFailures["BTC"] = 0
	e.refreshLeveragedBooks(ctx)
	assert.Equal(t, 0, e.venueFailures["BTC"], "degraded venue must be skipped, not retried")
}

func TestRefreshLeveragedBooks_RecoversAfterCooldown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Assets = []string{"BTC"}
	cfg.LeveragedBatchSize = 1
	cfg.VenueFailureThreshold = 1
	cfg.VenueCooldown = time.Millisecond

	client := &failingExchangeClient{failSymbol: "BTC"}
	e := New(cfg, client, nil, nil, staticDiscoveryClient{})

	ctx := context.Background()
	e.refreshLeveragedBooks(ctx)
	require.Contains(t, e.venueDegradedUntil, "BTC")

	time.Sleep(2 * time.Millisecond)
	client.failSymbol = ""
	e.refreshLeveragedBooks(ctx)

	_, stillDegraded := e.venueDegradedUntil["BTC"]
	assert.False(t, stillDegraded)
	assert.Equal(t, 0, e.venueFailures["BTC"])
	_, ok := e.books.Get("BTC")
	assert.True(t, ok, "book should be applied once the venue recovers")
}
