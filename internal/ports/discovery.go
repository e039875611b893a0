package ports

import "context"

// MarketMetadata is the normalized response of the discovery endpoint for
// one candidate slug (spec §4.5, §6).
type MarketMetadata struct {
	Slug        string
	Outcomes    []string // must be exactly ["Up", "Down"] to be retained
	UpTokenID   string
	DownTokenID string
	Found       bool
}

// MetadataDiscovery resolves a candidate slug to its market metadata.
type MetadataDiscovery interface {
	FetchMarket(ctx context.Context, slug string) (MarketMetadata, error)
}
