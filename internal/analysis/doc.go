// Package analysis provides interfaces and implementations for the stock
// analysis pipeline. It abstracts the market data provider behind a small
// interface and layers a deterministic heuristic scorer with per-strategy
// personalization on top, so the task queue can treat the whole pipeline as
// an opaque function from (symbol, strategy) to a result.
package analysis
