// Package spotfeed implements the external spot-price push source
// consumed by PriceFeed/MomentumDetector (spec §4.3, §6): a WebSocket
// stream of {symbol, price, change_10s_pct, change_30s_pct} ticks for the
// tracked leveraged-venue assets.
package spotfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alejandrodnm/tradeloop/internal/ports"
)

const (
	readTimeout      = 90 * time.Second
	maxReconnectWait = 30 * time.Second
	initialBackoff   = 3 * time.Second
	tickBufferSize   = 512
)

// Feed is a gorilla/websocket client implementing ports.SpotFeed.
type Feed struct {
	url     string
	symbols []string

	ticks  chan ports.SpotTick
	logger *slog.Logger
}

// New creates a feed for the given WebSocket URL and tracked symbols.
func New(wsURL string, symbols []string) *Feed {
	return &Feed{
		url:     wsURL,
		symbols: symbols,
		ticks:   make(chan ports.SpotTick, tickBufferSize),
		logger:  slog.Default().With("component", "spotfeed"),
	}
}

// Ticks returns the spot-tick channel.
func (f *Feed) Ticks() <-chan ports.SpotTick { return f.ticks }

// Close is a no-op placeholder; the feed's connection is owned by its
// internal reconnect loop and closed when ctx is cancelled.
func (f *Feed) Close() error { return nil }

// Run connects and maintains the connection with exponential backoff
// until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	go func() {
		backoff := initialBackoff
		for {
			err := f.connectAndRead(ctx)
			if ctx.Err() != nil {
				return
			}
			f.logger.Warn("disconnected, reconnecting", "err", err, "backoff", backoff)

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}

			backoff *= 2
			if backoff > maxReconnectWait {
				backoff = maxReconnectWait
			}
		}
	}()
	return nil
}

func (f *Feed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(subscribeMsg{Symbols: f.symbols}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	f.logger.Info("connected")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var tick tickMsg
		if err := json.Unmarshal(msg, &tick); err != nil {
			f.logger.Warn("unparseable spot tick", "err", err)
			continue
		}

		select {
		case f.ticks <- ports.SpotTick{
			Symbol:       tick.Symbol,
			Price:        tick.Price,
			Change10sPct: tick.Change10sPct,
			Change30sPct: tick.Change30sPct,
			ReceivedAt:   time.Now(),
		}:
		default:
			f.logger.Warn("tick channel full, dropping tick", "symbol", tick.Symbol)
		}
	}
}

type subscribeMsg struct {
	Symbols []string `json:"symbols"`
}

type tickMsg struct {
	Symbol       string  `json:"symbol"`
	Price        float64 `json:"price"`
	Change10sPct float64 `json:"change_10s_pct"`
	Change30sPct float64 `json:"change_30s_pct"`
}
