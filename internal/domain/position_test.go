package domain

import "testing"

func TestPaperPosition_PnLAt_Long(t *testing.T) {
	p := PaperPosition{Side: PositionLong, EntryPrice: 50000, Margin: 20, Leverage: 20}
	got := p.PnLAt(50500)
	want := (50500.0 - 50000.0) / 50000.0 * 20 * 20
	if got != want {
		t.Fatalf("PnLAt() = %v, want %v", got, want)
	}
}

func TestPaperPosition_PnLAt_Short(t *testing.T) {
	p := PaperPosition{Side: PositionShort, EntryPrice: 50000, Margin: 20, Leverage: 20}
	got := p.PnLAt(49500)
	want := -(49500.0 - 50000.0) / 50000.0 * 20 * 20
	if got != want {
		t.Fatalf("PnLAt() = %v, want %v", got, want)
	}
}

func TestPaperPosition_PnLAt_ZeroEntryPrice(t *testing.T) {
	p := PaperPosition{Side: PositionLong, EntryPrice: 0, Margin: 20, Leverage: 20}
	if got := p.PnLAt(100); got != 0 {
		t.Fatalf("PnLAt() with zero entry = %v, want 0", got)
	}
}

func TestPaperPosition_LiquidationTriggered_AtExactMarginLoss(t *testing.T) {
	p := PaperPosition{Side: PositionLong, EntryPrice: 50000, Margin: 20, Leverage: 20}
	// adverse move of 1/leverage = 5% wipes out the full margin.
	liqPrice := 50000 * (1 - 1.0/20)
	if !p.LiquidationTriggered(liqPrice) {
		t.Fatalf("expected liquidation at price %v", liqPrice)
	}
}

func TestPaperPosition_LiquidationTriggered_JustAboveThreshold(t *testing.T) {
	p := PaperPosition{Side: PositionLong, EntryPrice: 50000, Margin: 20, Leverage: 20}
	liqPrice := 50000*(1-1.0/20) + 1
	if p.LiquidationTriggered(liqPrice) {
		t.Fatalf("did not expect liquidation at price %v", liqPrice)
	}
}

func TestPaperPosition_Notional(t *testing.T) {
	p := PaperPosition{Margin: 20, Leverage: 20}
	if got := p.Notional(); got != 400 {
		t.Fatalf("Notional() = %v, want 400", got)
	}
}
