package ports

import (
	"context"

	"github.com/alejandrodnm/tradeloop/internal/domain"
)

// Notifier publishes telemetry snapshots to whatever transport the
// dashboard collaborator serves (spec §6 "Telemetry transport" — the
// HTTP/WS dashboard itself is an external collaborator, out of core
// scope; Notifier is the narrow interface the core publishes through).
type Notifier interface {
	Publish(ctx context.Context, snap domain.TelemetrySnapshot) error
}

// Storage persists trade history and equity samples for the process
// lifetime (spec §1 non-goal: no durability guarantee across crashes —
// this is a convenience record, not a recovery mechanism).
type Storage interface {
	ApplySchema(ctx context.Context) error
	SaveTrade(ctx context.Context, trade domain.ClosedTrade) error
	SaveEquityPoint(ctx context.Context, point domain.EquityPoint) error
	RecentTrades(ctx context.Context, limit int) ([]domain.ClosedTrade, error)
	Close() error
}
