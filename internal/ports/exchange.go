package ports

import (
	"context"

	"github.com/alejandrodnm/tradeloop/internal/domain"
)

// ExchangeClient is the polymorphic contract every venue adapter
// implements (spec §6). Simulated venues return an "not configured" error
// from the two placement methods — the paper wallet stands in for
// execution; a future live adapter would implement the same interface
// behind credential-signed submission.
type ExchangeClient interface {
	GetOrderBook(ctx context.Context, symbol string) (*domain.OrderBook, error)
	PlaceLimit(ctx context.Context, symbol string, side domain.PositionSide, price, size float64) error
	PlaceMarket(ctx context.Context, symbol string, side domain.PositionSide, size float64) error
	Cancel(ctx context.Context, orderID string) error
	IsConnected() bool
}

// ErrNotConfigured is returned by simulated venues' order-placement
// methods (spec §6).
var ErrNotConfigured = notConfiguredError{}

type notConfiguredError struct{}

func (notConfiguredError) Error() string { return "not configured: simulated venue, use PaperWallet" }
