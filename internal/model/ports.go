package model

import "context"

// ── Port interfaces ──
// These decouple the engine from concrete order routing and position sources
// (paper broker, Redis streams). Implementations live in execution and store.

// OrderRouter receives the engine's order intents.
// Calls are fire-and-forget: an error means the intent was not handed off,
// never that the order was rejected (rejections arrive as OrderEvents).
type OrderRouter interface {
	EnterLong(ctx context.Context, qty int64, tag string) error
	SetStopLoss(ctx context.Context, tag string, price float64) error
	SetProfitTarget(ctx context.Context, tag string, price float64) error
	ExitLong(ctx context.Context, tag, reason string) error
}

// PositionReader exposes the current position for the engine's instrument.
type PositionReader interface {
	Position() Position
}

// IntentSink delivers intents to an external order subsystem.
type IntentSink interface {
	PublishIntent(ctx context.Context, intent Intent) error
}

// BarWriter records completed bars.
type BarWriter interface {
	// Run reads bars from barCh and writes them.
	// Blocks until ctx is cancelled or barCh is closed.
	Run(ctx context.Context, barCh <-chan Bar)

	// Close releases underlying resources.
	Close() error
}

// BarReader reads stored bars for replay.
type BarReader interface {
	// ReadBars returns bars for symbol with close time after afterTS (Unix seconds), oldest first.
	ReadBars(symbol string, afterTS int64) ([]Bar, error)

	// Close releases underlying resources.
	Close() error
}
