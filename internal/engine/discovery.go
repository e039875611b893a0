package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandrodnm/tradeloop/internal/domain"
	"github.com/alejandrodnm/tradeloop/internal/ports"
)

// BinaryMarketDiscovery constructs deterministic slugs for the tracked
// (asset, timeframe) pairs and resolves them against the metadata endpoint
// on a fixed refresh cadence (spec §4.5).
type BinaryMarketDiscovery struct {
	cfg      Config
	client   ports.MetadataDiscovery
	markets  map[string]domain.BinaryMarket // slug -> market
	lastRun  time.Time
}

// NewBinaryMarketDiscovery wires the discovery loop to its HTTP collaborator.
func NewBinaryMarketDiscovery(cfg Config, client ports.MetadataDiscovery) *BinaryMarketDiscovery {
	return &BinaryMarketDiscovery{cfg: cfg, client: client, markets: make(map[string]domain.BinaryMarket)}
}

// Slug builds the deterministic slug for an asset/timeframe at the given
// window-start epoch (spec §4.5).
func Slug(asset string, tf domain.Timeframe, windowStartSec int64) string {
	return fmt.Sprintf("%s-updown-%s-%d", strings.ToLower(asset), tf, windowStartSec)
}

// candidateSlugs returns the current and previous window's slug for an
// asset/timeframe pair at the given time.
func candidateSlugs(asset string, tf domain.Timeframe, now time.Time) (current, previous string, currentStart, previousStart int64) {
	period := tf.PeriodSeconds()
	nowSec := now.Unix()
	currentStart = (nowSec / period) * period
	previousStart = currentStart - period
	return Slug(asset, tf, currentStart), Slug(asset, tf, previousStart), currentStart, previousStart
}

// Markets returns the live market registry.
func (d *BinaryMarketDiscovery) Markets() map[string]domain.BinaryMarket { return d.markets }

// Refresh runs one discovery pass: build candidates, resolve new ones via
// the metadata endpoint, reuse markets still open, and expire old ones
// (spec §4.5).
func (d *BinaryMarketDiscovery) Refresh(ctx context.Context, now time.Time, spotPrice func(asset string) (float64, bool)) {
	for _, asset := range d.cfg.Assets {
		for _, tfName := range d.cfg.Timeframes {
			tf := domain.Timeframe(tfName)
			current, previous, currentStart, previousStart := candidateSlugs(asset, tf, now)
			d.resolveOne(ctx, asset, tf, current, currentStart, now, spotPrice)
			d.resolveOne(ctx, asset, tf, previous, previousStart, now, spotPrice)
		}
	}
	d.expire(now)
	d.lastRun = now
}

func (d *BinaryMarketDiscovery) resolveOne(ctx context.Context, asset string, tf domain.Timeframe, slug string, windowStart int64, now time.Time, spotPrice func(string) (float64, bool)) {
	if existing, ok := d.markets[slug]; ok {
		if existing.EndTS.After(now) {
			return // still open, nothing to re-register beyond what the WS feed already tracks
		}
	}

	meta, err := d.client.FetchMarket(ctx, slug)
	if err != nil {
		slog.Warn("discovery: fetch market failed", "slug", slug, "err", err)
		return
	}
	if !meta.Found || len(meta.Outcomes) != 2 {
		return
	}
	if !(meta.Outcomes[0] == string(domain.SideUp) && meta.Outcomes[1] == string(domain.SideDown)) &&
		!(meta.Outcomes[0] == string(domain.SideDown) && meta.Outcomes[1] == string(domain.SideUp)) {
		return
	}

	startTS := time.Unix(windowStart, 0)
	endTS := startTS.Add(time.Duration(tf.PeriodSeconds()) * time.Second)
	if endTS.Before(now) {
		return
	}

	market := domain.BinaryMarket{
		Asset:       asset,
		Timeframe:   tf,
		Slug:        slug,
		StartTS:     startTS,
		EndTS:       endTS,
		UpTokenID:   meta.UpTokenID,
		DownTokenID: meta.DownTokenID,
	}
	if price, ok := spotPrice(asset); ok {
		market.StartPrice = price
	}
	d.markets[slug] = market
}

// expire drops markets whose end is more than 60s in the past.
func (d *BinaryMarketDiscovery) expire(now time.Time) {
	for slug, m := range d.markets {
		if m.Expired(now) {
			delete(d.markets, slug)
		}
	}
}
