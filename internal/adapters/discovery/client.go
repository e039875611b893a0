// Package discovery implements the market-metadata HTTP client used by
// BinaryMarketDiscovery (spec §4.5). The metadata endpoint has been
// observed to wrap its payload either as a bare object or as a
// single-element array depending on deployment — both are accepted
// (SPEC_FULL open question #3).
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/tradeloop/internal/ports"
)

// Client is the rate-limited HTTP client for the market-metadata endpoint.
type Client struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
}

// New creates a Client against baseURL.
func New(baseURL string, ratePerSec float64, burst int) *Client {
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		base:    baseURL,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
	}
}

// FetchMarket resolves one candidate slug against the metadata endpoint.
func (c *Client) FetchMarket(ctx context.Context, slug string) (ports.MarketMetadata, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return ports.MarketMetadata{}, fmt.Errorf("rate limiter: %w", err)
	}

	url := fmt.Sprintf("%s/markets/%s", c.base, slug)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ports.MarketMetadata{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ports.MarketMetadata{}, fmt.Errorf("discovery.FetchMarket: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ports.MarketMetadata{Found: false}, nil
	}
	if resp.StatusCode >= 400 {
		return ports.MarketMetadata{}, fmt.Errorf("discovery.FetchMarket: status %d", resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return ports.MarketMetadata{}, fmt.Errorf("discovery.FetchMarket: decode: %w", err)
	}

	doc, err := unwrapMarketDoc(raw)
	if err != nil {
		return ports.MarketMetadata{}, fmt.Errorf("discovery.FetchMarket: %w", err)
	}
	return doc.toMetadata(slug), nil
}

// unwrapMarketDoc accepts either a bare object or a single-element array
// wrapping the object, keyed on the first non-whitespace byte.
func unwrapMarketDoc(raw json.RawMessage) (marketDoc, error) {
	trimmed := skipWhitespace(raw)
	if len(trimmed) == 0 {
		return marketDoc{}, fmt.Errorf("empty response")
	}

	if trimmed[0] == '[' {
		var arr []marketDoc
		if err := json.Unmarshal(raw, &arr); err != nil {
			return marketDoc{}, err
		}
		if len(arr) == 0 {
			return marketDoc{}, nil
		}
		return arr[0], nil
	}

	var doc marketDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return marketDoc{}, err
	}
	return doc, nil
}

func skipWhitespace(raw []byte) []byte {
	for i, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return raw[i:]
		}
	}
	return nil
}

// marketDoc mirrors the Gamma-style metadata payload: outcomes,
// clobTokenIds and outcomePrices are themselves JSON-encoded as strings
// rather than native arrays (spec §6), the same double-encoding the
// teacher's scanner.go parses via its parseJSONArray helper.
type marketDoc struct {
	Slug          string `json:"slug"`
	Outcomes      string `json:"outcomes"`
	ClobTokenIds  string `json:"clobTokenIds"`
	OutcomePrices string `json:"outcomePrices"`
}

func (d marketDoc) toMetadata(slug string) ports.MarketMetadata {
	var outcomes []string
	if d.Outcomes != "" {
		_ = json.Unmarshal([]byte(d.Outcomes), &outcomes)
	}
	var tokenIDs []string
	if d.ClobTokenIds != "" {
		_ = json.Unmarshal([]byte(d.ClobTokenIds), &tokenIDs)
	}

	meta := ports.MarketMetadata{Slug: slug, Outcomes: outcomes, Found: len(outcomes) > 0}
	for i, outcome := range outcomes {
		if i >= len(tokenIDs) {
			break
		}
		switch outcome {
		case "Up":
			meta.UpTokenID = tokenIDs[i]
		case "Down":
			meta.DownTokenID = tokenIDs[i]
		}
	}
	return meta
}
