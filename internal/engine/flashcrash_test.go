package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/tradeloop/internal/domain"
)

func bookAtMid(mid float64) domain.OrderBook {
	return domain.OrderBook{
		Bids: []domain.BookLevel{{Price: mid, Size: 100}},
		Asks: []domain.BookLevel{{Price: mid, Size: 100}},
	}
}

func TestFlashCrashDetector_TriggersAtExactDropThreshold(t *testing.T) {
	cfg := DefaultConfig()
	w := NewPaperWallet(1000)
	d := NewFlashCrashDetector(cfg, w)

	market := &domain.BinaryMarket{
		Asset: "BTC", Slug: "btc-updown-5m-1000",
		EndTS: time.Now().Add(5 * time.Minute),
	}
	betted := domain.NewBettedSlugs()

	base := time.Now()
	d.OnBookUpdate("tok1", bookAtMid(0.50), market, domain.SideUp, betted, base)
	d.OnBookUpdate("tok1", bookAtMid(0.50), market, domain.SideUp, betted, base.Add(1*time.Second))
	// Exactly a 15% drop from the 0.50 recent max.
	d.OnBookUpdate("tok1", bookAtMid(0.425), market, domain.SideUp, betted, base.Add(2*time.Second))

	require.Len(t, w.State().Bets, 1)
}

func TestFlashCrashDetector_IgnoresMidRangeExtremes(t *testing.T) {
	cfg := DefaultConfig()
	w := NewPaperWallet(1000)
	d := NewFlashCrashDetector(cfg, w)

	market := &domain.BinaryMarket{
		Asset: "BTC", Slug: "btc-updown-5m-1000",
		EndTS: time.Now().Add(5 * time.Minute),
	}
	betted := domain.NewBettedSlugs()

	base := time.Now()
	d.OnBookUpdate("tok1", bookAtMid(0.97), market, domain.SideUp, betted, base)
	d.OnBookUpdate("tok1", bookAtMid(0.97), market, domain.SideUp, betted, base.Add(1*time.Second))
	d.OnBookUpdate("tok1", bookAtMid(0.96), market, domain.SideUp, betted, base.Add(2*time.Second))

	assert.Empty(t, w.State().Bets) // mid >= 0.95 gate blocks entry regardless of drop
}

func TestFlashCrashDetector_SkipsBelowMinSamples(t *testing.T) {
	cfg := DefaultConfig()
	w := NewPaperWallet(1000)
	d := NewFlashCrashDetector(cfg, w)

	market := &domain.BinaryMarket{
		Asset: "BTC", Slug: "btc-updown-5m-1000",
		EndTS: time.Now().Add(5 * time.Minute),
	}
	betted := domain.NewBettedSlugs()

	base := time.Now()
	d.OnBookUpdate("tok1", bookAtMid(0.50), market, domain.SideUp, betted, base)
	d.OnBookUpdate("tok1", bookAtMid(0.40), market, domain.SideUp, betted, base.Add(1*time.Second))

	assert.Empty(t, w.State().Bets) // only 2 samples, below MinSamples=3
}
