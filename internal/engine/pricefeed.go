package engine

import (
	"github.com/alejandrodnm/tradeloop/internal/domain"
	"github.com/alejandrodnm/tradeloop/internal/ports"
)

// PriceFeed consumes the external spot-price push stream and maintains a
// bounded PriceBuffer per symbol (spec §4.3).
type PriceFeed struct {
	window  int
	buffers map[string]*domain.PriceBuffer
}

// NewPriceFeed creates a feed that keeps at most 2*window ticks per symbol.
func NewPriceFeed(window int) *PriceFeed {
	return &PriceFeed{window: window, buffers: make(map[string]*domain.PriceBuffer)}
}

// Ingest appends one spot tick to its symbol's buffer.
func (f *PriceFeed) Ingest(tick ports.SpotTick) {
	buf, ok := f.buffers[tick.Symbol]
	if !ok {
		buf = domain.NewPriceBuffer(tick.Symbol, 2*f.window)
		f.buffers[tick.Symbol] = buf
	}
	buf.Push(domain.PriceTick{Price: tick.Price, TS: tick.ReceivedAt})
}

// Latest returns the most recent spot price for a symbol, or 0.
func (f *PriceFeed) Latest(symbol string) float64 {
	buf, ok := f.buffers[symbol]
	if !ok {
		return 0
	}
	return buf.LatestPrice()
}

// Buffer returns the PriceBuffer for a symbol, creating it if absent.
func (f *PriceFeed) Buffer(symbol string) *domain.PriceBuffer {
	buf, ok := f.buffers[symbol]
	if !ok {
		buf = domain.NewPriceBuffer(symbol, 2*f.window)
		f.buffers[symbol] = buf
	}
	return buf
}

// SpotPrice reports the latest known price for a symbol, used by
// BinaryMarketDiscovery (capturing start_price) and Settlement (reading
// the resolution-time price) as the reference external feed.
func (f *PriceFeed) SpotPrice(symbol string) (float64, bool) {
	buf, ok := f.buffers[symbol]
	if !ok {
		return 0, false
	}
	price := buf.LatestPrice()
	return price, price != 0
}

// BookLookup resolves the leveraged-venue book for an asset's symbol, used
// by MomentumDetector to confirm a signal against live depth.
type BookLookup func(symbol string) (domain.OrderBook, bool)

// MomentumDetector emits a confirmed signal when a run of consecutive
// same-direction price moves, or a large short-horizon change, is observed
// and not strongly opposed by the leveraged-venue book (spec §4.3).
type MomentumDetector struct {
	cfg    Config
	lookup BookLookup
}

// NewMomentumDetector wires the detector to the leveraged-venue book
// lookup used for confirmation.
func NewMomentumDetector(cfg Config, lookup BookLookup) *MomentumDetector {
	return &MomentumDetector{cfg: cfg, lookup: lookup}
}

// Evaluate inspects the symbol's buffer after a new tick and returns a
// confirmed signal, if any. change10sPct is the venue-reported short
// horizon change used for the secondary trigger.
func (d *MomentumDetector) Evaluate(asset string, buf *domain.PriceBuffer, change10sPct float64) *domain.MomentumSignal {
	if sig := d.evaluateConsecutive(asset, buf); sig != nil {
		return sig
	}
	return d.evaluateSecondary(asset, change10sPct)
}

func (d *MomentumDetector) evaluateConsecutive(asset string, buf *domain.PriceBuffer) *domain.MomentumSignal {
	recent := buf.Last(d.cfg.MomentumWindow)
	if len(recent) < 2 {
		return nil
	}

	run := 0
	var runSign float64
	for i := len(recent) - 1; i > 0; i-- {
		delta := recent[i].Price - recent[i-1].Price
		sign := signOf(delta)
		if sign == 0 {
			break
		}
		if run == 0 {
			runSign = sign
		} else if sign != runSign {
			break
		}
		run++
	}

	if run < d.cfg.MomentumMinConsecutive {
		return nil
	}

	runStart := recent[len(recent)-1-run].Price
	runEnd := recent[len(recent)-1].Price
	if runStart == 0 {
		return nil
	}
	move := (runEnd - runStart) / runStart
	if absFloat(move) < d.cfg.MomentumMinMove {
		return nil
	}

	direction := domain.DirectionLong
	if runSign < 0 {
		direction = domain.DirectionShort
	}

	strength := float64(run) / float64(d.cfg.MomentumWindow)
	if strength > 1 {
		strength = 1
	}

	sig := &domain.MomentumSignal{
		Asset:     asset,
		Direction: direction,
		Strength:  strength,
		MoveSize:  move,
	}
	sig.Confirmed = d.confirm(asset, direction)
	if !sig.Confirmed {
		return nil
	}
	return sig
}

func (d *MomentumDetector) evaluateSecondary(asset string, change10sPct float64) *domain.MomentumSignal {
	if absFloat(change10sPct) <= 0.003 {
		return nil
	}
	direction := domain.DirectionLong
	if change10sPct < 0 {
		direction = domain.DirectionShort
	}
	strength := 300 * absFloat(change10sPct)
	if strength > 1 {
		strength = 1
	}
	sig := &domain.MomentumSignal{
		Asset:     asset,
		Direction: direction,
		Strength:  strength,
		MoveSize:  change10sPct,
		Confirmed: true, // secondary trigger bypasses book confirmation per spec §4.3
	}
	return sig
}

// confirm consults the leveraged-venue top-5-level depth imbalance and
// rejects signals the book strongly opposes (spec §4.3, threshold ±0.1).
func (d *MomentumDetector) confirm(asset string, direction domain.Direction) bool {
	if d.lookup == nil {
		return true
	}
	book, ok := d.lookup(asset)
	if !ok {
		return true
	}
	imbalance := book.DepthImbalance(5)
	band := d.cfg.MomentumImbalanceBand
	if direction == domain.DirectionLong && imbalance < -band {
		return false
	}
	if direction == domain.DirectionShort && imbalance > band {
		return false
	}
	return true
}

func signOf(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
