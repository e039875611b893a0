package predictionws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/tradeloop/internal/adapters/predictionws"
	"github.com/alejandrodnm/tradeloop/internal/ports"
)

var upgrader = websocket.Upgrader{}

func newPredictionServer(t *testing.T, handle func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		go handle(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFeed_Run_DeliversBookSnapshot(t *testing.T) {
	srv := newPredictionServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		var sub map[string]any
		require.NoError(t, conn.ReadJSON(&sub))
		conn.WriteMessage(websocket.TextMessage, []byte(`{
			"event_type":"book",
			"asset_id":"tok1",
			"buys":[{"price":"0.45","size":"100"}],
			"sells":[{"price":"0.47","size":"80"}]
		}`))
	})
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	feed := predictionws.New(wsURL)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, feed.Run(ctx))
	require.NoError(t, feed.Subscribe([]string{"tok1"}))

	select {
	case ev := <-feed.Events():
		require.Equal(t, ports.BookEventSnapshot, ev.Type)
		require.Equal(t, "tok1", ev.TokenID)
		require.True(t, ev.Snapshot)
		require.Len(t, ev.Bids, 1)
		require.InDelta(t, 0.45, ev.Bids[0].Price, 1e-9)
		require.Len(t, ev.Asks, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for book event")
	}
}

func TestFeed_Run_DeliversPriceChangeGroupedByAsset(t *testing.T) {
	srv := newPredictionServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		var sub map[string]any
		require.NoError(t, conn.ReadJSON(&sub))
		conn.WriteMessage(websocket.TextMessage, []byte(`{
			"event_type":"price_change",
			"price_changes":[
				{"asset_id":"tok1","price":"0.50","size":"10","side":"BUY"},
				{"asset_id":"tok1","price":"0.52","size":"5","side":"SELL"}
			]
		}`))
	})
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	feed := predictionws.New(wsURL)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, feed.Run(ctx))
	require.NoError(t, feed.Subscribe([]string{"tok1"}))

	select {
	case ev := <-feed.Events():
		require.Equal(t, ports.BookEventIncremental, ev.Type)
		require.Equal(t, "tok1", ev.TokenID)
		require.Len(t, ev.Bids, 1)
		require.Len(t, ev.Asks, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for price_change event")
	}
}

func TestFeed_Run_DeliversLastTradePrice(t *testing.T) {
	srv := newPredictionServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		var sub map[string]any
		require.NoError(t, conn.ReadJSON(&sub))
		conn.WriteMessage(websocket.TextMessage, []byte(`{
			"event_type":"last_trade_price",
			"asset_id":"tok1",
			"price":"0.55",
			"size":"20"
		}`))
	})
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	feed := predictionws.New(wsURL)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, feed.Run(ctx))
	require.NoError(t, feed.Subscribe([]string{"tok1"}))

	select {
	case tr := <-feed.Trades():
		require.Equal(t, "tok1", tr.TokenID)
		require.InDelta(t, 0.55, tr.Price, 1e-9)
		require.InDelta(t, 20.0, tr.Size, 1e-9)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for trade event")
	}
}

func TestFeed_Run_IgnoresPingHeartbeat(t *testing.T) {
	srv := newPredictionServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		var sub map[string]any
		require.NoError(t, conn.ReadJSON(&sub))
		conn.WriteMessage(websocket.TextMessage, []byte("PING"))
		conn.WriteMessage(websocket.TextMessage, []byte(`{
			"event_type":"last_trade_price","asset_id":"tok1","price":"0.5","size":"1"
		}`))
	})
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	feed := predictionws.New(wsURL)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, feed.Run(ctx))
	require.NoError(t, feed.Subscribe([]string{"tok1"}))

	select {
	case tr := <-feed.Trades():
		require.Equal(t, "tok1", tr.TokenID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for trade event after PING")
	}
}
