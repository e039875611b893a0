// Package storage persists closed trades and equity-curve points to a
// local SQLite database (pure Go, no CGo), grounded on the teacher's
// single-writer/prune-on-startup conventions.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/tradeloop/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS closed_trades (
	position_id  TEXT PRIMARY KEY,
	venue        TEXT NOT NULL,
	symbol       TEXT NOT NULL,
	strategy_tag TEXT NOT NULL,
	side         TEXT NOT NULL,
	entry_price  REAL NOT NULL,
	exit_price   REAL NOT NULL,
	margin       REAL NOT NULL,
	leverage     REAL NOT NULL,
	realized_pnl REAL NOT NULL,
	reason       TEXT NOT NULL,
	opened_at    DATETIME NOT NULL,
	closed_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS equity_curve (
	ts     DATETIME PRIMARY KEY,
	equity REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_closed_at ON closed_trades(closed_at DESC);
`

const retention = 30 * 24 * time.Hour

// SQLiteStorage implements ports.Storage.
type SQLiteStorage struct {
	db *sql.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.Open: %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)
	return &SQLiteStorage{db: db}, nil
}

// ApplySchema creates the tables if they don't exist and prunes rows
// older than the retention window.
func (s *SQLiteStorage) ApplySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("storage.ApplySchema: %w", err)
	}
	cutoff := time.Now().UTC().Add(-retention)
	s.db.ExecContext(ctx, `DELETE FROM closed_trades WHERE closed_at < ?`, cutoff)
	s.db.ExecContext(ctx, `DELETE FROM equity_curve WHERE ts < ?`, cutoff)
	return nil
}

// SaveTrade inserts one closed trade.
func (s *SQLiteStorage) SaveTrade(ctx context.Context, trade domain.ClosedTrade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO closed_trades
			(position_id, venue, symbol, strategy_tag, side, entry_price, exit_price,
			 margin, leverage, realized_pnl, reason, opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(position_id) DO NOTHING
	`,
		trade.PositionID, trade.Venue, trade.Symbol, string(trade.StrategyTag), string(trade.Side),
		trade.EntryPrice, trade.ExitPrice, trade.Margin, trade.Leverage, trade.RealizedPnL,
		string(trade.Reason), trade.OpenedAt.UTC(), trade.ClosedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveTrade: %w", err)
	}
	return nil
}

// SaveEquityPoint inserts one equity-curve sample.
func (s *SQLiteStorage) SaveEquityPoint(ctx context.Context, point domain.EquityPoint) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO equity_curve (ts, equity) VALUES (?, ?) ON CONFLICT(ts) DO UPDATE SET equity = excluded.equity`,
		point.TS.UTC(), point.Equity,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveEquityPoint: %w", err)
	}
	return nil
}

// RecentTrades returns the most recently closed trades, newest first.
func (s *SQLiteStorage) RecentTrades(ctx context.Context, limit int) ([]domain.ClosedTrade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position_id, venue, symbol, strategy_tag, side, entry_price, exit_price,
		       margin, leverage, realized_pnl, reason, opened_at, closed_at
		FROM closed_trades
		ORDER BY closed_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentTrades: query: %w", err)
	}
	defer rows.Close()

	var trades []domain.ClosedTrade
	for rows.Next() {
		var t domain.ClosedTrade
		var strategyTag, side, reason string
		if err := rows.Scan(
			&t.PositionID, &t.Venue, &t.Symbol, &strategyTag, &side,
			&t.EntryPrice, &t.ExitPrice, &t.Margin, &t.Leverage, &t.RealizedPnL,
			&reason, &t.OpenedAt, &t.ClosedAt,
		); err != nil {
			return nil, fmt.Errorf("storage.RecentTrades: scan: %w", err)
		}
		t.StrategyTag = domain.Strategy(strategyTag)
		t.Side = domain.PositionSide(side)
		t.Reason = domain.ExitReason(reason)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
