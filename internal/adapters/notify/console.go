// Package notify implements console telemetry publishing (spec §4.13),
// grounded on the teacher's tablewriter-based console reporter.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/tradeloop/internal/domain"
)

// Console implements ports.Notifier, printing a compact summary line plus
// an open-positions table on every published snapshot.
type Console struct {
	out io.Writer
}

// NewConsole creates a notifier that writes to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter creates a notifier writing to an arbitrary writer, for tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Publish prints the snapshot's headline numbers and open positions.
func (c *Console) Publish(_ context.Context, snap domain.TelemetrySnapshot) error {
	now := snap.GeneratedAt.Format("15:04:05")
	fmt.Fprintf(c.out, "[%s] tick=%d tps=%.2f equity=$%.2f cash=$%.2f pnl=$%.2f open=%d markets=%d\n",
		now, snap.TickCount, snap.TicksPerSecond, snap.Equity, snap.CashBalance,
		snap.TotalRealizedPnL, snap.OpenPositions, snap.ActiveMarkets,
	)

	if len(snap.Positions) == 0 {
		return nil
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Symbol", "Strategy", "Side", "Entry", "Mark", "Margin", "Lev", "uPnL")
	for _, p := range snap.Positions {
		table.Append(
			p.Symbol,
			string(p.StrategyTag),
			string(p.Side),
			fmt.Sprintf("%.4f", p.EntryPrice),
			fmt.Sprintf("%.4f", p.CurrentPrice),
			fmt.Sprintf("$%.2f", p.Margin),
			fmt.Sprintf("%.0fx", p.Leverage),
			fmt.Sprintf("$%.2f", p.UnrealizedPnL),
		)
	}
	table.Render()

	for _, m := range snap.StrategyMetrics {
		fmt.Fprintf(c.out, "  %-16s trades=%d wins=%d pnl=$%.2f\n",
			m.Strategy, m.TradeCount, m.Wins, m.RealizedPnL)
	}
	return nil
}
