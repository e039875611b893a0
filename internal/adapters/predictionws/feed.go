// Package predictionws implements the prediction-market push transport
// (spec §6): a single public WebSocket channel emitting "book",
// "price_change", and "last_trade_price" events for a set of subscribed
// token ids, with heartbeat PINGs filtered before parse.
package predictionws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alejandrodnm/tradeloop/internal/ports"
)

const (
	pingInterval     = 10 * time.Second
	readTimeout      = 90 * time.Second
	maxReconnectWait = 30 * time.Second
	initialBackoff   = 3 * time.Second
	writeTimeout     = 10 * time.Second
	eventBufferSize  = 1024
	tradeBufferSize  = 256
)

// Feed is a gorilla/websocket client implementing ports.BookFeed. It owns
// reconnect/backoff and re-subscribes to the full accumulated token set on
// every reconnect (spec §4.2 failure contract).
type Feed struct {
	url string

	connMu sync.Mutex
	conn   *websocket.Conn

	subscribedMu sync.RWMutex
	subscribed   map[string]bool

	events chan ports.BookEvent
	trades chan ports.TradeEvent

	logger *slog.Logger
}

// New creates a feed for the given WebSocket URL.
func New(wsURL string) *Feed {
	return &Feed{
		url:        wsURL,
		subscribed: make(map[string]bool),
		events:     make(chan ports.BookEvent, eventBufferSize),
		trades:     make(chan ports.TradeEvent, tradeBufferSize),
		logger:     slog.Default().With("component", "predictionws"),
	}
}

// Events returns the book-event channel.
func (f *Feed) Events() <-chan ports.BookEvent { return f.events }

// Trades returns the trade-event channel.
func (f *Feed) Trades() <-chan ports.TradeEvent { return f.trades }

// Subscribe grows the tracked token-id set and, if connected, sends an
// incremental subscribe frame.
func (f *Feed) Subscribe(tokenIDs []string) error {
	f.subscribedMu.Lock()
	for _, id := range tokenIDs {
		f.subscribed[id] = true
	}
	f.subscribedMu.Unlock()

	return f.writeJSON(subscribeMsg{Assets: tokenIDs})
}

// Close closes the active connection, if any.
func (f *Feed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

// Run connects and maintains the connection with exponential backoff
// (3s doubling to a 30s cap, reset on successful open) until ctx is
// cancelled (spec §4.2 failure contract).
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

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()
	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	if err := f.resubscribeAll(); err != nil {
		return fmt.Errorf("resubscribe: %w", err)
	}
	f.logger.Info("connected")

	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go f.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		f.dispatch(msg)
	}
}

func (f *Feed) resubscribeAll() error {
	f.subscribedMu.RLock()
	ids := make([]string, 0, len(f.subscribed))
	for id := range f.subscribed {
		ids = append(ids, id)
	}
	f.subscribedMu.RUnlock()
	if len(ids) == 0 {
		return nil
	}
	return f.writeJSON(subscribeMsg{Assets: ids})
}

// dispatch parses one frame, filters PING heartbeats, and routes by
// event_type. Unparseable frames are skipped with a warning; malformed
// levels are skipped silently (spec §4.2 failure contract).
func (f *Feed) dispatch(data []byte) {
	if string(data) == "PING" || string(data) == "PONG" {
		return
	}

	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		f.logger.Warn("unparseable frame", "err", err)
		return
	}

	now := time.Now()
	switch envelope.EventType {
	case "book":
		var msg bookMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			f.logger.Warn("malformed book event", "err", err)
			return
		}
		f.emitEvent(ports.BookEvent{
			Type:       ports.BookEventSnapshot,
			TokenID:    msg.AssetID,
			Bids:       parseLevels(msg.Buys),
			Asks:       parseLevels(msg.Sells),
			Snapshot:   true,
			ReceivedAt: now,
		})

	case "price_change":
		var msg priceChangeMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			f.logger.Warn("malformed price_change event", "err", err)
			return
		}
		type sides struct{ bids, asks []ports.LevelUpdate }
		grouped := make(map[string]*sides)
		var order []string
		for _, c := range msg.PriceChanges {
			g, ok := grouped[c.AssetID]
			if !ok {
				g = &sides{}
				grouped[c.AssetID] = g
				order = append(order, c.AssetID)
			}
			price, err1 := strconv.ParseFloat(c.Price, 64)
			size, err2 := strconv.ParseFloat(c.Size, 64)
			if err1 != nil || err2 != nil {
				continue // malformed level: skipped silently
			}
			level := ports.LevelUpdate{Price: price, Size: size}
			if c.Side == "SELL" {
				g.asks = append(g.asks, level)
			} else {
				g.bids = append(g.bids, level)
			}
		}
		for _, assetID := range order {
			g := grouped[assetID]
			f.emitEvent(ports.BookEvent{
				Type:       ports.BookEventIncremental,
				TokenID:    assetID,
				Bids:       g.bids,
				Asks:       g.asks,
				ReceivedAt: now,
			})
		}

	case "last_trade_price":
		var msg tradeMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			f.logger.Warn("malformed last_trade_price event", "err", err)
			return
		}
		price, _ := strconv.ParseFloat(msg.Price, 64)
		size, _ := strconv.ParseFloat(msg.Size, 64)
		select {
		case f.trades <- ports.TradeEvent{TokenID: msg.AssetID, Price: price, Size: size, ReceivedAt: now}:
		default:
			f.logger.Warn("trade channel full, dropping event", "asset", msg.AssetID)
		}

	default:
		f.logger.Debug("ignoring event", "type", envelope.EventType)
	}
}

func (f *Feed) emitEvent(ev ports.BookEvent) {
	select {
	case f.events <- ev:
	default:
		f.logger.Warn("event channel full, dropping event", "token", ev.TokenID)
	}
}

func (f *Feed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeMessage(websocket.TextMessage, []byte("PING")); err != nil {
				f.logger.Warn("ping failed", "err", err)
				return
			}
		}
	}
}

func (f *Feed) writeJSON(v any) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return nil // buffered until connectAndRead's initial resubscribe
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}

func (f *Feed) writeMessage(msgType int, data []byte) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteMessage(msgType, data)
}

func parseLevels(raw []priceLevel) []ports.LevelUpdate {
	out := make([]ports.LevelUpdate, 0, len(raw))
	for _, l := range raw {
		price, err1 := strconv.ParseFloat(l.Price, 64)
		size, err2 := strconv.ParseFloat(l.Size, 64)
		if err1 != nil || err2 != nil {
			continue // malformed level: skipped silently (spec §4.2)
		}
		out = append(out, ports.LevelUpdate{Price: price, Size: size})
	}
	return out
}

type subscribeMsg struct {
	Assets []string `json:"assets_ids"`
}

type priceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type bookMsg struct {
	AssetID string       `json:"asset_id"`
	Buys    []priceLevel `json:"buys"`
	Sells   []priceLevel `json:"sells"`
}

type priceChangeLevel struct {
	AssetID string `json:"asset_id"`
	Price   string `json:"price"`
	Size    string `json:"size"`
	Side    string `json:"side"`
}

type priceChangeMsg struct {
	PriceChanges []priceChangeLevel `json:"price_changes"`
}

type tradeMsg struct {
	AssetID string `json:"asset_id"`
	Price   string `json:"price"`
	Size    string `json:"size"`
}
