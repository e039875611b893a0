package engine

import (
	"sort"
	"time"

	"github.com/alejandrodnm/tradeloop/internal/domain"
	"github.com/alejandrodnm/tradeloop/internal/ports"
)

// BookSide distinguishes which side of the book a level update touches.
type BookSide string

const (
	SideBid BookSide = "bid"
	SideAsk BookSide = "ask"
)

// BookStore maintains, per token id, the latest order book fed by the
// prediction-market WS adapter (spec §4.2). It is owned exclusively by the
// engine's single mutation path; callbacks fire synchronously from
// ApplySnapshot/ApplyIncremental so RealtimeExitGuard and FlashCrashDetector
// observe a touched book before the next tick reads it.
type BookStore struct {
	books     map[string]domain.OrderBook
	callbacks []func(tokenID string, book domain.OrderBook)
}

// NewBookStore creates an empty store.
func NewBookStore() *BookStore {
	return &BookStore{books: make(map[string]domain.OrderBook)}
}

// OnTouch registers a callback invoked once per touched token after a
// snapshot or an aggregated incremental batch (spec §4.2 guarantee: never
// once per level).
func (s *BookStore) OnTouch(fn func(tokenID string, book domain.OrderBook)) {
	s.callbacks = append(s.callbacks, fn)
}

// Get returns the current book for a token and whether it exists.
func (s *BookStore) Get(tokenID string) (domain.OrderBook, bool) {
	b, ok := s.books[tokenID]
	return b, ok
}

// ApplySnapshot replaces the book for a token entirely: sorts, drops
// zero-size levels, stamps now.
func (s *BookStore) ApplySnapshot(tokenID string, bids, asks []domain.BookLevel, now time.Time) {
	book := domain.OrderBook{
		TokenID:   tokenID,
		Bids:      sortLevels(dropZero(bids), true),
		Asks:      sortLevels(dropZero(asks), false),
		UpdatedAt: now,
	}
	s.books[tokenID] = book
	s.fire(tokenID, book)
}

// ApplyIncremental processes a batch of level changes possibly spanning
// multiple tokens, applying each change in received order, then firing one
// callback per touched token (spec §4.2, §5 ordering guarantee 4).
func (s *BookStore) ApplyIncremental(changes []IncrementalChange, now time.Time) {
	touched := make(map[string]bool)
	for _, c := range changes {
		book, ok := s.books[c.TokenID]
		if !ok {
			book = domain.OrderBook{TokenID: c.TokenID}
		}
		applyLevelChange(&book, c.Side, c.Price, c.Size)
		book.UpdatedAt = now
		s.books[c.TokenID] = book
		touched[c.TokenID] = true
	}
	for tokenID := range touched {
		s.fire(tokenID, s.books[tokenID])
	}
}

// IncrementalChange is one (token, side, price, size) delta from a
// price_change event.
type IncrementalChange struct {
	TokenID string
	Side    BookSide
	Price   float64
	Size    float64
}

// FromBookEvent converts an adapter-level ports.BookEvent into domain book
// levels, used by both the snapshot and incremental paths.
func FromBookEvent(ev ports.BookEvent) (bids, asks []domain.BookLevel) {
	bids = make([]domain.BookLevel, 0, len(ev.Bids))
	for _, l := range ev.Bids {
		bids = append(bids, domain.BookLevel{Price: l.Price, Size: l.Size})
	}
	asks = make([]domain.BookLevel, 0, len(ev.Asks))
	for _, l := range ev.Asks {
		asks = append(asks, domain.BookLevel{Price: l.Price, Size: l.Size})
	}
	return bids, asks
}

func (s *BookStore) fire(tokenID string, book domain.OrderBook) {
	for _, cb := range s.callbacks {
		cb(tokenID, book)
	}
}

func applyLevelChange(book *domain.OrderBook, side BookSide, price, size float64) {
	levels := &book.Bids
	ascending := false
	if side == SideAsk {
		levels = &book.Asks
		ascending = true
	}

	idx := -1
	for i, l := range *levels {
		if domain.SameLevel(l.Price, price) {
			idx = i
			break
		}
	}

	switch {
	case size == 0:
		if idx >= 0 {
			*levels = append((*levels)[:idx], (*levels)[idx+1:]...)
		}
	case idx >= 0:
		(*levels)[idx].Size = size
	default:
		*levels = append(*levels, domain.BookLevel{Price: price, Size: size})
	}

	*levels = sortLevels(*levels, ascending)
}

func dropZero(levels []domain.BookLevel) []domain.BookLevel {
	out := make([]domain.BookLevel, 0, len(levels))
	for _, l := range levels {
		if l.Size > 0 {
			out = append(out, l)
		}
	}
	return out
}

func sortLevels(levels []domain.BookLevel, ascending bool) []domain.BookLevel {
	sort.Slice(levels, func(i, j int) bool {
		if ascending {
			return levels[i].Price < levels[j].Price
		}
		return levels[i].Price > levels[j].Price
	})
	return levels
}
