// Package domain holds the plain state types shared by every engine
// component: order books, price history, markets, positions and the paper
// wallet. Types here carry no behavior beyond small derived-field helpers —
// the mutation rules (spec: BookStore, PaperWallet, ...) live in
// internal/engine, which is the sole owner of this state at runtime.
package domain

import "time"

// priceTolerance is the maximum absolute price difference for two book
// levels to be considered the same level during an incremental update.
const priceTolerance = 1e-12

// BookLevel is one price level of an order book.
type BookLevel struct {
	Price float64
	Size  float64
}

// OrderBook is the latest known state of one (venue, token) order book.
// Bids are kept sorted descending by price, asks ascending; levels with
// Size == 0 are never stored.
type OrderBook struct {
	Venue     string
	TokenID   string
	Bids      []BookLevel
	Asks      []BookLevel
	UpdatedAt time.Time
}

// BestBid returns the highest bid price, or 0 if the book has no bids.
func (b OrderBook) BestBid() float64 {
	if len(b.Bids) == 0 {
		return 0
	}
	return b.Bids[0].Price
}

// BestAsk returns the lowest ask price, or 0 if the book has no asks.
func (b OrderBook) BestAsk() float64 {
	if len(b.Asks) == 0 {
		return 0
	}
	return b.Asks[0].Price
}

// BestBidSize returns the size available at the best bid, or 0.
func (b OrderBook) BestBidSize() float64 {
	if len(b.Bids) == 0 {
		return 0
	}
	return b.Bids[0].Size
}

// BestAskSize returns the size available at the best ask, or 0.
func (b OrderBook) BestAskSize() float64 {
	if len(b.Asks) == 0 {
		return 0
	}
	return b.Asks[0].Size
}

// Mid returns the bid-ask midpoint. When only one side exists it degrades
// to that side; when the book is empty it returns 0.
func (b OrderBook) Mid() float64 {
	bid, ask := b.BestBid(), b.BestAsk()
	switch {
	case bid > 0 && ask > 0:
		return (bid + ask) / 2
	case bid > 0:
		return bid
	case ask > 0:
		return ask
	default:
		return 0
	}
}

// Spread returns BestAsk - BestBid, or 0 when either side is empty.
func (b OrderBook) Spread() float64 {
	bid, ask := b.BestBid(), b.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return ask - bid
}

// depthUSDC sums size*price for the top n levels of the given side.
func depthUSDC(levels []BookLevel, n int) float64 {
	var total float64
	for i, l := range levels {
		if i >= n {
			break
		}
		total += l.Size * l.Price
	}
	return total
}

// TopBidDepthUSDC sums the USDC value of the top n bid levels.
func (b OrderBook) TopBidDepthUSDC(n int) float64 { return depthUSDC(b.Bids, n) }

// TopAskDepthUSDC sums the USDC value of the top n ask levels.
func (b OrderBook) TopAskDepthUSDC(n int) float64 { return depthUSDC(b.Asks, n) }

// DepthImbalance computes (bidDepth-askDepth)/(bidDepth+askDepth) over the
// top n levels of each side. Returns 0 when both sides are empty.
func (b OrderBook) DepthImbalance(n int) float64 {
	bidDepth := depthUSDC(b.Bids, n)
	askDepth := depthUSDC(b.Asks, n)
	total := bidDepth + askDepth
	if total == 0 {
		return 0
	}
	return (bidDepth - askDepth) / total
}

// SameLevel reports whether two prices are equal within the tolerance used
// to locate a level during an incremental book update.
func SameLevel(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= priceTolerance
}
