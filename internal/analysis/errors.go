package analysis

import "errors"

// Common errors returned by the analysis package
var (
	// ErrUnknownSymbol is returned when the provider has no data for a symbol
	ErrUnknownSymbol = errors.New("unknown symbol")

	// ErrProviderUnavailable is returned when the market data provider cannot
	// be reached or responds with a server error
	ErrProviderUnavailable = errors.New("market data provider unavailable")

	// ErrInvalidQuote is returned when the provider response cannot be parsed
	// or is missing required fields
	ErrInvalidQuote = errors.New("invalid quote from provider")

	// ErrUnknownStrategy is returned when a strategy tag has no
	// personalization profile
	ErrUnknownStrategy = errors.New("unknown analysis strategy")
)
