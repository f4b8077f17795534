package analysis

import (
	"context"

	"github.com/stockpulse/stockpulse-api/internal/domain"
)

// Analyzer defines the interface for turning a (symbol, strategy) pair into
// an analysis result. This interface is the boundary between the task queue
// and the market-data/scoring pipeline: the queue treats implementations as
// opaque, potentially slow and potentially failing.
type Analyzer interface {
	// Analyze fetches market data for the symbol, scores it and applies the
	// strategy's personalization. It returns a result payload or an error if
	// any stage fails (see errors.go for specific types). Implementations
	// must honor ctx cancellation since callers enforce per-task deadlines.
	Analyze(ctx context.Context, symbol, strategy string) (*domain.AnalysisResult, error)
}

// MarketDataProvider fetches a current quote for a symbol from an external
// market data source.
type MarketDataProvider interface {
	// GetQuote returns the latest quote for the symbol or an error if the
	// symbol is unknown or the provider cannot be reached.
	GetQuote(ctx context.Context, symbol string) (*domain.Quote, error)
}
