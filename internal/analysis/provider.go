package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/stockpulse/stockpulse-api/internal/domain"
)

// ProviderConfig holds the settings for the HTTP market data provider.
type ProviderConfig struct {
	// BaseURL is the root endpoint of the quote API, e.g. "https://api.example.com".
	BaseURL string

	// APIKey is sent as a query parameter on every request.
	APIKey string

	// Timeout bounds each quote request. Defaults to 10s when zero.
	Timeout time.Duration
}

// HTTPProvider fetches quotes from a third-party REST API. It implements
// MarketDataProvider.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// quoteResponse mirrors the provider's wire format for a quote lookup.
type quoteResponse struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Volume        int64   `json:"volume"`
	AvgVolume     int64   `json:"avg_volume"`
	PERatio       float64 `json:"pe_ratio"`
	DividendYield float64 `json:"dividend_yield"`
	High52Week    float64 `json:"high_52_week"`
	Low52Week     float64 `json:"low_52_week"`
}

// NewHTTPProvider creates an HTTPProvider from the given configuration.
// Returns an error if the base URL is missing or unparseable.
func NewHTTPProvider(cfg ProviderConfig, logger *slog.Logger) (*HTTPProvider, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("provider base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid provider base URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTPProvider{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

// GetQuote fetches the latest quote for the symbol.
func (p *HTTPProvider) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	endpoint := fmt.Sprintf("%s/v1/quote/%s", p.baseURL, url.PathEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build quote request: %w", err)
	}
	if p.apiKey != "" {
		q := req.URL.Query()
		q.Set("apikey", p.apiKey)
		req.URL.RawQuery = q.Encode()
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			p.logger.Warn("failed to close provider response body", "error", err)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: provider returned status %d", ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrInvalidQuote, resp.StatusCode)
	}

	var body quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuote, err)
	}
	if body.Symbol == "" || body.Price <= 0 {
		return nil, fmt.Errorf("%w: missing symbol or price", ErrInvalidQuote)
	}

	return &domain.Quote{
		Symbol:        body.Symbol,
		Price:         body.Price,
		Change:        body.Change,
		ChangePercent: body.ChangePercent,
		Volume:        body.Volume,
		AvgVolume:     body.AvgVolume,
		PERatio:       body.PERatio,
		DividendYield: body.DividendYield,
		High52Week:    body.High52Week,
		Low52Week:     body.Low52Week,
		RetrievedAt:   time.Now().UTC(),
	}, nil
}
