package ports

import (
	"context"
	"time"
)

// BookEvent is the typed message the prediction-market WS adapter emits on
// its output channel. The engine is the sole consumer; this replaces the
// source's registered-callback pattern (design note §9).
type BookEvent struct {
	Type      BookEventType
	TokenID   string
	Bids      []LevelUpdate // snapshot: full side; incremental: changed levels only
	Asks      []LevelUpdate
	Snapshot  bool
	ReceivedAt time.Time
}

// BookEventType distinguishes a full snapshot from an incremental batch.
type BookEventType string

const (
	BookEventSnapshot    BookEventType = "book"
	BookEventIncremental BookEventType = "price_change"
)

// LevelUpdate is one (price, size) pair from a book or price_change event.
// Size == 0 means "remove this level".
type LevelUpdate struct {
	Price float64
	Size  float64
}

// TradeEvent is a last_trade_price event from the prediction-market feed.
type TradeEvent struct {
	TokenID    string
	Price      float64
	Size       float64
	ReceivedAt time.Time
}

// BookFeed is the prediction-market push transport (spec §6 WS protocol).
// Implementations own reconnect/backoff and re-subscription; the engine
// only reads from the channels and calls Subscribe to grow the token set.
type BookFeed interface {
	Run(ctx context.Context) error
	Subscribe(tokenIDs []string) error
	Events() <-chan BookEvent
	Trades() <-chan TradeEvent
	Close() error
}

// SpotTick is one push update from the external spot-price feed (spec §6).
type SpotTick struct {
	Symbol        string
	Price         float64
	Change10sPct  float64
	Change30sPct  float64
	ReceivedAt    time.Time
}

// SpotFeed is the external spot-price push source (spec §4.3).
type SpotFeed interface {
	Run(ctx context.Context) error
	Ticks() <-chan SpotTick
	Close() error
}
