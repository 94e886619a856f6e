package model

import "context"

// ── Port Interfaces ──
// These interfaces decouple the indicator service from concrete market-data
// sources (OKX REST, SQLite) and summary sinks (Redis, WebSocket gateway).

// BarSource returns the most recent bars of a series.
type BarSource interface {
	// FetchBars returns up to limit bars in ascending time order.
	FetchBars(ctx context.Context, key SeriesKey, limit int) ([]Bar, error)
}

// SummaryPublisher delivers an encoded indicator report to consumers.
// The payload is raw JSON so sinks never import the indicator package.
type SummaryPublisher interface {
	// PublishSummary publishes payload for the given series.
	PublishSummary(ctx context.Context, key SeriesKey, payload []byte) error

	// Close releases underlying resources.
	Close() error
}
