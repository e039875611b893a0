// Package leveraged implements a rate-limited REST client for the
// leveraged spot/perps venue (spec §1, §6): order book polling for the
// rotating batch TickEngine reads every tick. Order placement is not
// wired to a real venue — trading is simulated entirely through
// internal/engine's PaperWallet — so the two placement methods always
// return ports.ErrNotConfigured, matching spec §6's "simulated venue"
// contract.
package leveraged

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/tradeloop/internal/domain"
	"github.com/alejandrodnm/tradeloop/internal/ports"
)

const (
	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client is the HTTP client for the leveraged venue's public order-book
// endpoint, rate limited and with retry/backoff on transient failures
// (grounded on the Polymarket CLOB client's doWithRetry shape).
type Client struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
}

// New creates a Client against baseURL, rate limited to ratePerSec
// sustained requests with a burst of burst.
func New(baseURL string, ratePerSec float64, burst int) *Client {
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		base:    baseURL,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
	}
}

// IsConnected reports whether the client has a configured base URL.
func (c *Client) IsConnected() bool { return c.base != "" }

// GetOrderBook fetches the public order book for symbol.
func (c *Client) GetOrderBook(ctx context.Context, symbol string) (*domain.OrderBook, error) {
	url := fmt.Sprintf("%s/book?symbol=%s", c.base, symbol)

	var resp bookResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("leveraged.GetOrderBook: %w", err)
	}

	book := &domain.OrderBook{
		TokenID:   symbol,
		Bids:      parseLevels(resp.Bids),
		Asks:      parseLevels(resp.Asks),
		UpdatedAt: time.Now(),
	}
	return book, nil
}

// PlaceLimit is unconfigured: positions are simulated through PaperWallet.
func (c *Client) PlaceLimit(ctx context.Context, symbol string, side domain.PositionSide, price, size float64) error {
	return ports.ErrNotConfigured
}

// PlaceMarket is unconfigured: positions are simulated through PaperWallet.
func (c *Client) PlaceMarket(ctx context.Context, symbol string, side domain.PositionSide, size float64) error {
	return ports.ErrNotConfigured
}

// Cancel is unconfigured: positions are simulated through PaperWallet.
func (c *Client) Cancel(ctx context.Context, orderID string) error {
	return ports.ErrNotConfigured
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("leveraged venue rate limited us", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

func parseLevels(raw []levelJSON) []domain.BookLevel {
	out := make([]domain.BookLevel, 0, len(raw))
	for _, l := range raw {
		price, err1 := strconv.ParseFloat(l.Price, 64)
		size, err2 := strconv.ParseFloat(l.Size, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, domain.BookLevel{Price: price, Size: size})
	}
	return out
}

type levelJSON struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type bookResponse struct {
	Bids []levelJSON `json:"bids"`
	Asks []levelJSON `json:"asks"`
}
