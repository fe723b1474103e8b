package model

import "context"

// ── Collaborator Port Interfaces ──
// These interfaces decouple the engine from concrete market-data and account
// implementations (Redis streams, exchange REST, paper account).

// MarketData returns closed bars for one symbol and timeframe.
type MarketData interface {
	// GetBars returns up to count bars ordered oldest → newest.
	// May return fewer than requested.
	GetBars(ctx context.Context, symbol string, tf Timeframe, count int) ([]Bar, error)
}

// AccountSource returns the current balance and open positions.
type AccountSource interface {
	GetAccountSnapshot(ctx context.Context) (AccountSnapshot, error)
}

// PositionReporter receives position lifecycle events from the execution side.
type PositionReporter interface {
	ReportPositionOpened(pos OpenPosition)
	ReportPositionClosed(symbol string)
	ReleaseReservation(symbol string)
}

// DecisionSink consumes engine decisions (journal, publisher, websocket hub).
type DecisionSink interface {
	// Run reads decisions until ctx is cancelled or the channel is closed.
	Run(ctx context.Context, decisions <-chan Decision)
}
