package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/tradeloop/internal/domain"
	"github.com/alejandrodnm/tradeloop/internal/ports"
)

// TickEngine is the 500ms scheduler that drives every strategy component
// in a fixed sub-step order (spec §4.1). It is the single owner of all
// mutable state: WS/price-feed producers run on their own goroutines
// inside their adapters, but every state change is applied from this
// struct's single Run loop, so no locking is required anywhere in the
// engine package.
type TickEngine struct {
	cfg Config

	wallet         *PaperWallet
	books          *BookStore
	priceFeed      *PriceFeed
	momentum       *MomentumDetector
	momentumTrader *MomentumTrader
	leveragedMgr   *LeveragedPositionMgr
	discovery      *BinaryMarketDiscovery
	selector       *BinaryBetSelector
	arb            *CompleteSetArbDetector
	flashCrash     *FlashCrashDetector
	realtimeGuard  *RealtimeExitGuard
	earlyExit      *EarlyExit
	settlement     *Settlement
	snapshots      *SnapshotBuilder

	leveragedClient ports.ExchangeClient
	bookFeed        ports.BookFeed
	spotFeed        ports.SpotFeed

	leveragedSymbols []string
	rotationIdx      int

	venueFailures      map[string]int
	venueDegradedUntil map[string]time.Time

	betted domain.BettedSlugs
	arbed  domain.CompletedSetArbs

	orderTimestamps map[string]time.Time

	subscribedTokens map[string]bool

	recentTrades []domain.ClosedTrade

	tickCount uint64
	startedAt time.Time

	notify func(domain.TelemetrySnapshot)
}

// New assembles a TickEngine from its configuration and I/O collaborators.
func New(cfg Config, leveragedClient ports.ExchangeClient, bookFeed ports.BookFeed, spotFeed ports.SpotFeed, discoveryClient ports.MetadataDiscovery) *TickEngine {
	wallet := NewPaperWallet(cfg.StartingBalance)
	books := NewBookStore()

	e := &TickEngine{
		cfg:             cfg,
		wallet:          wallet,
		books:           books,
		priceFeed:       NewPriceFeed(cfg.MomentumWindow),
		momentumTrader:  NewMomentumTrader(cfg, wallet),
		leveragedMgr:    NewLeveragedPositionMgr(cfg, wallet),
		discovery:       NewBinaryMarketDiscovery(cfg, discoveryClient),
		selector:        NewBinaryBetSelector(cfg, wallet),
		arb:             NewCompleteSetArbDetector(cfg, wallet),
		flashCrash:      NewFlashCrashDetector(cfg, wallet),
		realtimeGuard:   NewRealtimeExitGuard(cfg, wallet),
		earlyExit:       NewEarlyExit(cfg, wallet),
		settlement:      NewSettlement(cfg, wallet),
		leveragedClient: leveragedClient,
		bookFeed:        bookFeed,
		spotFeed:        spotFeed,

		leveragedSymbols:   cfg.Assets,
		venueFailures:      make(map[string]int),
		venueDegradedUntil: make(map[string]time.Time),
		betted:             domain.NewBettedSlugs(),
		arbed:            domain.NewCompletedSetArbs(),
		orderTimestamps:  make(map[string]time.Time),
		subscribedTokens: make(map[string]bool),
		startedAt:        time.Now(),
	}
	e.snapshots = NewSnapshotBuilder(wallet, e.startedAt)

	lookup := func(slug string) (domain.BinaryMarket, bool) {
		m, ok := e.discovery.Markets()[slug]
		return m, ok
	}
	e.realtimeGuard.SetMarketLookup(lookup)
	e.earlyExit.SetMarketLookup(lookup)
	e.settlement.SetMarketLookup(lookup)

	e.momentum = NewMomentumDetector(cfg, func(symbol string) (domain.OrderBook, bool) {
		return e.books.Get(symbol)
	})

	wallet.OnClose(func(trade domain.ClosedTrade) {
		e.recentTrades = append(e.recentTrades, trade)
		if over := len(e.recentTrades) - 500; over > 0 {
			e.recentTrades = e.recentTrades[over:]
		}
	})

	books.OnTouch(func(tokenID string, book domain.OrderBook) {
		e.realtimeGuard.OnBookUpdate(tokenID, book, book.UpdatedAt)
		if market, side, ok := e.marketForToken(tokenID); ok {
			e.flashCrash.OnBookUpdate(tokenID, book, &market, side, e.betted, book.UpdatedAt)
		}
	})

	return e
}

// OnSnapshot registers a callback invoked with a fresh telemetry snapshot
// after each tick (spec §4.13's publish cadence), used to wire a notifier
// or storage adapter without coupling the engine to either.
func (e *TickEngine) OnSnapshot(fn func(domain.TelemetrySnapshot)) {
	e.notify = fn
}

// Wallet exposes the underlying paper wallet, used by cmd/engine to print
// a final equity report.
func (e *TickEngine) Wallet() *PaperWallet { return e.wallet }

// Run drains the feed channels and fires the tick on a fixed interval
// until ctx is cancelled. All state mutation happens on this single
// goroutine (spec §4.1 concurrency contract).
func (e *TickEngine) Run(ctx context.Context) error {
	if err := e.bookFeed.Run(ctx); err != nil {
		return fmt.Errorf("engine: start book feed: %w", err)
	}
	if err := e.spotFeed.Run(ctx); err != nil {
		return fmt.Errorf("engine: start spot feed: %w", err)
	}

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case now := <-ticker.C:
			e.runTickSafely(ctx, now)

		case ev, ok := <-e.bookFeed.Events():
			if !ok {
				continue
			}
			e.handleBookEventSafely(ev)

		case tr, ok := <-e.bookFeed.Trades():
			if !ok {
				continue
			}
			e.recordOrderTimestamp(tr.TokenID, tr.ReceivedAt)

		case tick, ok := <-e.spotFeed.Ticks():
			if !ok {
				continue
			}
			e.handleSpotTickSafely(tick)
		}
	}
}

// runTickSafely executes one full tick, logging and swallowing any panic
// so a single bad tick never brings the process down (spec §4.1 contract).
func (e *TickEngine) runTickSafely(ctx context.Context, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("engine: tick panic recovered", "panic", r, "tick", e.tickCount)
		}
	}()
	e.tick(ctx, now)
	e.tickCount++
}

func (e *TickEngine) handleBookEventSafely(ev ports.BookEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("engine: book event panic recovered", "panic", r)
		}
	}()
	e.handleBookEvent(ev)
}

func (e *TickEngine) handleSpotTickSafely(tick ports.SpotTick) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("engine: spot tick panic recovered", "panic", r)
		}
	}()
	e.handleSpotTick(tick)
}

// tick runs the nine sub-steps in the exact order spec §4.1 mandates. No
// sub-step observes effects of a later sub-step within the same tick.
func (e *TickEngine) tick(ctx context.Context, now time.Time) {
	if now.Sub(e.discovery.lastRun) >= e.cfg.DiscoveryInterval {
		e.discovery.Refresh(ctx, now, e.priceFeed.SpotPrice)
		e.subscribeNewTokens()
	}

	// (1) rotating batch of leveraged-venue books.
	e.refreshLeveragedBooks(ctx)

	// (2) bounded slice of event-venue books — no REST fallback is wired
	// by default; the WS feed is the sole source of book state.

	// (3) record the current equity point.
	e.wallet.RecordEquity(now)

	// (4) mark-to-market every open leveraged position.
	for _, symbol := range e.leveragedSymbols {
		price := e.priceFeed.Latest(symbol)
		if price == 0 {
			continue
		}
		e.leveragedMgr.MarkAndManage(symbol, price, now)
	}

	// (5) manage leveraged positions is folded into MarkAndManage above.

	// (6) complete-set arb.
	e.arb.Scan(e.discovery.Markets(), e.arbed, e.books.Get, now)

	// (7) early-exit for binary bets.
	e.earlyExit.Run(e.books.Get, now)

	// (8) settlement.
	e.settlement.Run(e.priceFeed.SpotPrice, now)

	// (9) GC stale order timestamps.
	e.gcOrderTimestamps(now)

	if e.notify != nil {
		e.notify(e.Snapshot(now))
	}
}

// subscribeNewTokens grows the prediction-market WS subscription to cover
// every token discovery has resolved so far, skipping ones already sent.
func (e *TickEngine) subscribeNewTokens() {
	var fresh []string
	for _, m := range e.discovery.Markets() {
		for _, tok := range []string{m.UpTokenID, m.DownTokenID} {
			if tok == "" || e.subscribedTokens[tok] {
				continue
			}
			fresh = append(fresh, tok)
			e.subscribedTokens[tok] = true
		}
	}
	if len(fresh) == 0 {
		return
	}
	if err := e.bookFeed.Subscribe(fresh); err != nil {
		slog.Warn("engine: book feed subscribe failed", "tokens", len(fresh), "err", err)
	}
}

// refreshLeveragedBooks fetches this tick's rotating batch of leveraged-venue
// books concurrently (spec §4.1 step 1). Fetches run on their own
// goroutines via errgroup; results are collected into a plain slice and
// applied to the BookStore back on the engine's single goroutine, so the
// store itself is never touched concurrently.
//
// A venue that fails VenueFailureThreshold consecutive refreshes is marked
// degraded and skipped for VenueCooldown instead of being retried every
// tick, so one broken venue doesn't eat the whole batch's rotation slots.
func (e *TickEngine) refreshLeveragedBooks(ctx context.Context) {
	if len(e.leveragedSymbols) == 0 || e.leveragedClient == nil {
		return
	}
	batch := e.cfg.LeveragedBatchSize
	if batch > len(e.leveragedSymbols) {
		batch = len(e.leveragedSymbols)
	}

	now := time.Now()
	symbols := make([]string, 0, batch)
	for attempts := 0; len(symbols) < batch && attempts < len(e.leveragedSymbols); attempts++ {
		symbol := e.leveragedSymbols[e.rotationIdx%len(e.leveragedSymbols)]
		e.rotationIdx++
		if until, degraded := e.venueDegradedUntil[symbol]; degraded {
			if now.Before(until) {
				continue
			}
			delete(e.venueDegradedUntil, symbol)
			e.venueFailures[symbol] = 0
		}
		symbols = append(symbols, symbol)
	}
	if len(symbols) == 0 {
		return
	}

	books := make([]*domain.OrderBook, len(symbols))
	errs := make([]bool, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			book, err := e.leveragedClient.GetOrderBook(gctx, symbol)
			if err != nil {
				slog.Warn("engine: leveraged book refresh failed", "symbol", symbol, "err", err)
				errs[i] = true
				return nil
			}
			books[i] = book
			return nil
		})
	}
	g.Wait()

	for i, symbol := range symbols {
		if errs[i] {
			e.venueFailures[symbol]++
			if e.venueFailures[symbol] >= e.cfg.VenueFailureThreshold {
				e.venueDegradedUntil[symbol] = now.Add(e.cfg.VenueCooldown)
				slog.Warn("engine: venue marked degraded", "symbol", symbol, "until", e.venueDegradedUntil[symbol])
			}
			continue
		}
		e.venueFailures[symbol] = 0
		if books[i] == nil {
			continue
		}
		e.books.ApplySnapshot(symbol, books[i].Bids, books[i].Asks, now)
	}
}

// handleBookEvent applies a prediction-market feed event to the book
// store. The realtime guard and flash-crash detector run off the store's
// OnTouch callback, which fires once per touched token after the update is
// applied — ahead of the next tick, per spec §4.9/§4.8.
func (e *TickEngine) handleBookEvent(ev ports.BookEvent) {
	bids, asks := FromBookEvent(ev)
	now := ev.ReceivedAt
	if now.IsZero() {
		now = time.Now()
	}

	switch ev.Type {
	case ports.BookEventSnapshot:
		e.books.ApplySnapshot(ev.TokenID, bids, asks, now)
	case ports.BookEventIncremental:
		changes := make([]IncrementalChange, 0, len(bids)+len(asks))
		for _, l := range bids {
			changes = append(changes, IncrementalChange{TokenID: ev.TokenID, Side: SideBid, Price: l.Price, Size: l.Size})
		}
		for _, l := range asks {
			changes = append(changes, IncrementalChange{TokenID: ev.TokenID, Side: SideAsk, Price: l.Price, Size: l.Size})
		}
		e.books.ApplyIncremental(changes, now)
	}
}

func (e *TickEngine) marketForToken(tokenID string) (domain.BinaryMarket, domain.Side, bool) {
	for _, m := range e.discovery.Markets() {
		if m.UpTokenID == tokenID {
			return m, domain.SideUp, true
		}
		if m.DownTokenID == tokenID {
			return m, domain.SideDown, true
		}
	}
	return domain.BinaryMarket{}, "", false
}

// handleSpotTick ingests one spot price update, then runs the momentum
// detector and, on a confirmed signal, the momentum trader and the
// binary-bet selector.
func (e *TickEngine) handleSpotTick(tick ports.SpotTick) {
	e.priceFeed.Ingest(tick)
	buf := e.priceFeed.Buffer(tick.Symbol)

	sig := e.momentum.Evaluate(tick.Symbol, buf, tick.Change10sPct)
	if sig == nil || !sig.Confirmed {
		return
	}
	e.momentumTrader.OnSignal(*sig, tick.Price, tick.ReceivedAt)
	e.selector.OnSignal(*sig, e.discovery.Markets(), e.betted, e.books.Get, tick.ReceivedAt)
}

func (e *TickEngine) recordOrderTimestamp(id string, at time.Time) {
	if id == "" {
		return
	}
	e.orderTimestamps[id] = at
}

func (e *TickEngine) gcOrderTimestamps(now time.Time) {
	cutoff := now.Add(-e.cfg.OrderTimestampTTL)
	for id, ts := range e.orderTimestamps {
		if ts.Before(cutoff) {
			delete(e.orderTimestamps, id)
		}
	}
}

// Snapshot builds a read-only telemetry snapshot of current engine state.
func (e *TickEngine) Snapshot(now time.Time) domain.TelemetrySnapshot {
	tokenIDs := make([]string, 0)
	for _, m := range e.discovery.Markets() {
		tokenIDs = append(tokenIDs, m.UpTokenID, m.DownTokenID)
	}
	return e.snapshots.Build(now, e.tickCount, e.recentTrades, e.books, tokenIDs, e.discovery.Markets(), nil)
}
