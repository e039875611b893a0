package domain

import "testing"

func TestPriceBuffer_Push_TruncatesToCap(t *testing.T) {
	buf := NewPriceBuffer("BTC", 3)
	for i := 0; i < 5; i++ {
		buf.Push(PriceTick{Price: float64(i)})
	}
	if len(buf.Ticks) != 3 {
		t.Fatalf("len(Ticks) = %d, want 3", len(buf.Ticks))
	}
	// oldest two (0, 1) should have been dropped
	if buf.Ticks[0].Price != 2 {
		t.Fatalf("Ticks[0].Price = %v, want 2", buf.Ticks[0].Price)
	}
}

func TestPriceBuffer_Last_FewerThanRequested(t *testing.T) {
	buf := NewPriceBuffer("BTC", 10)
	buf.Push(PriceTick{Price: 1})
	buf.Push(PriceTick{Price: 2})

	got := buf.Last(5)
	if len(got) != 2 {
		t.Fatalf("Last(5) len = %d, want 2", len(got))
	}
}

func TestPriceBuffer_Last_ExactSubset(t *testing.T) {
	buf := NewPriceBuffer("BTC", 10)
	for i := 1; i <= 5; i++ {
		buf.Push(PriceTick{Price: float64(i)})
	}
	got := buf.Last(2)
	if len(got) != 2 || got[0].Price != 4 || got[1].Price != 5 {
		t.Fatalf("Last(2) = %+v, want [4 5]", got)
	}
}

func TestPriceBuffer_LatestPrice_Empty(t *testing.T) {
	buf := NewPriceBuffer("BTC", 10)
	if got := buf.LatestPrice(); got != 0 {
		t.Fatalf("LatestPrice() on empty buffer = %v, want 0", got)
	}
}

func TestPriceBuffer_LatestPrice_ReturnsMostRecent(t *testing.T) {
	buf := NewPriceBuffer("BTC", 10)
	buf.Push(PriceTick{Price: 100})
	buf.Push(PriceTick{Price: 200})
	if got := buf.LatestPrice(); got != 200 {
		t.Fatalf("LatestPrice() = %v, want 200", got)
	}
}
