package domain

import "time"

// Recommendation is the action suggested by the analysis pipeline.
type Recommendation string

// Possible recommendation values
const (
	RecommendationBuy  Recommendation = "buy"
	RecommendationHold Recommendation = "hold"
	RecommendationSell Recommendation = "sell"
)

// Quote is a snapshot of market data for a single symbol as returned by the
// data provider.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Volume        int64     `json:"volume"`
	AvgVolume     int64     `json:"avg_volume"`
	PERatio       float64   `json:"pe_ratio"`
	DividendYield float64   `json:"dividend_yield"`
	High52Week    float64   `json:"high_52_week"`
	Low52Week     float64   `json:"low_52_week"`
	RetrievedAt   time.Time `json:"retrieved_at"`
}

// AnalysisResult is the success payload of an analysis task. It carries the
// overall score, the recommendation derived from it, and the per-strategy
// notes produced by personalization.
type AnalysisResult struct {
	Symbol         string         `json:"symbol"`
	Strategy       string         `json:"strategy"`
	Score          float64        `json:"score"`
	Recommendation Recommendation `json:"recommendation"`
	Confidence     float64        `json:"confidence"`
	Notes          []string       `json:"notes,omitempty"`
	Quote          Quote          `json:"quote"`
	GeneratedAt    time.Time      `json:"generated_at"`
}
