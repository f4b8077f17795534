package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/stockpulse/stockpulse-api/internal/domain"
)

// strategyProfile weights the scoring components for one personalization
// variant and carries the note templates shown to that audience.
type strategyProfile struct {
	momentumWeight  float64
	valuationWeight float64
	stabilityWeight float64
	incomeWeight    float64
	buyThreshold    float64
	sellThreshold   float64
	description     string
}

// profiles maps strategy tags to their personalization. The tags mirror the
// investor personas exposed by the product.
var profiles = map[string]strategyProfile{
	domain.DefaultStrategy: {
		momentumWeight:  0.25,
		valuationWeight: 0.30,
		stabilityWeight: 0.30,
		incomeWeight:    0.15,
		buyThreshold:    65,
		sellThreshold:   35,
		description:     "balanced across momentum, valuation and stability",
	},
	"growth_investor": {
		momentumWeight:  0.50,
		valuationWeight: 0.15,
		stabilityWeight: 0.25,
		incomeWeight:    0.10,
		buyThreshold:    60,
		sellThreshold:   30,
		description:     "momentum-weighted for growth investors",
	},
	"value_investor": {
		momentumWeight:  0.10,
		valuationWeight: 0.55,
		stabilityWeight: 0.25,
		incomeWeight:    0.10,
		buyThreshold:    70,
		sellThreshold:   40,
		description:     "valuation-weighted for value investors",
	},
	"dividend_hunter": {
		momentumWeight:  0.10,
		valuationWeight: 0.25,
		stabilityWeight: 0.25,
		incomeWeight:    0.40,
		buyThreshold:    65,
		sellThreshold:   35,
		description:     "income-weighted for dividend hunters",
	},
	"day_trader": {
		momentumWeight:  0.65,
		valuationWeight: 0.05,
		stabilityWeight: 0.20,
		incomeWeight:    0.10,
		buyThreshold:    55,
		sellThreshold:   45,
		description:     "short-horizon momentum profile",
	},
}

// HeuristicAnalyzer scores a quote with a deterministic rule tree and
// personalizes the outcome per strategy. It implements Analyzer.
type HeuristicAnalyzer struct {
	provider MarketDataProvider
	logger   *slog.Logger
}

// NewHeuristicAnalyzer creates a HeuristicAnalyzer backed by the given
// market data provider.
func NewHeuristicAnalyzer(provider MarketDataProvider, logger *slog.Logger) *HeuristicAnalyzer {
	return &HeuristicAnalyzer{
		provider: provider,
		logger:   logger,
	}
}

// Analyze fetches the symbol's quote, computes the component scores and
// blends them with the strategy's weights.
func (a *HeuristicAnalyzer) Analyze(
	ctx context.Context,
	symbol, strategy string,
) (*domain.AnalysisResult, error) {
	profile, ok := profiles[strategy]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	quote, err := a.provider.GetQuote(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote for %s: %w", symbol, err)
	}

	momentum := momentumScore(quote)
	valuation := valuationScore(quote)
	stability := stabilityScore(quote)
	income := incomeScore(quote)

	score := momentum*profile.momentumWeight +
		valuation*profile.valuationWeight +
		stability*profile.stabilityWeight +
		income*profile.incomeWeight
	score = clamp(score, 0, 100)

	recommendation := domain.RecommendationHold
	switch {
	case score >= profile.buyThreshold:
		recommendation = domain.RecommendationBuy
	case score <= profile.sellThreshold:
		recommendation = domain.RecommendationSell
	}

	result := &domain.AnalysisResult{
		Symbol:         quote.Symbol,
		Strategy:       strategy,
		Score:          round1(score),
		Recommendation: recommendation,
		Confidence:     round1(confidence(score, profile)),
		Notes: []string{
			profile.description,
			fmt.Sprintf("momentum %.0f, valuation %.0f, stability %.0f, income %.0f",
				momentum, valuation, stability, income),
		},
		Quote:       *quote,
		GeneratedAt: time.Now().UTC(),
	}

	a.logger.Debug("analysis complete",
		"symbol", result.Symbol,
		"strategy", strategy,
		"score", result.Score,
		"recommendation", result.Recommendation)

	return result, nil
}

// momentumScore rates recent price action. Positive daily change and volume
// above average both push the score up.
func momentumScore(q *domain.Quote) float64 {
	score := 50 + q.ChangePercent*8
	if q.AvgVolume > 0 && q.Volume > q.AvgVolume {
		score += 10
	}
	return clamp(score, 0, 100)
}

// valuationScore rates price relative to earnings and the 52-week range.
func valuationScore(q *domain.Quote) float64 {
	score := 50.0
	switch {
	case q.PERatio <= 0:
		score -= 15
	case q.PERatio < 15:
		score += 25
	case q.PERatio < 25:
		score += 10
	case q.PERatio > 40:
		score -= 20
	}

	if span := q.High52Week - q.Low52Week; span > 0 {
		position := (q.Price - q.Low52Week) / span
		// Cheaper within the yearly range reads as better value.
		score += (0.5 - position) * 30
	}
	return clamp(score, 0, 100)
}

// stabilityScore penalizes large daily swings.
func stabilityScore(q *domain.Quote) float64 {
	return clamp(80-math.Abs(q.ChangePercent)*12, 0, 100)
}

// incomeScore rates the dividend yield; yields above ~6% are treated as a
// sustainability warning rather than a bonus.
func incomeScore(q *domain.Quote) float64 {
	switch {
	case q.DividendYield <= 0:
		return 20
	case q.DividendYield < 2:
		return 50
	case q.DividendYield < 6:
		return 80
	default:
		return 55
	}
}

// confidence grows with the score's distance from the hold band midpoint.
func confidence(score float64, p strategyProfile) float64 {
	mid := (p.buyThreshold + p.sellThreshold) / 2
	span := p.buyThreshold - mid
	if span <= 0 {
		return 50
	}
	return clamp(50+math.Abs(score-mid)/span*40, 0, 95)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
