package social

import (
	"time"

	"github.com/markcheno/go-talib"
)

// Trending thresholds. A coin is trending when price momentum and mention
// growth line up; either signal alone only marks it as spiking.
const (
	rsiPeriod        = 14
	rsiTrendingLevel = 60.0
	mentionSpikeMin  = 2.0 // 24h mentions at least 2x the trailing baseline
)

// TrendingResult is the outcome of one trending evaluation
type TrendingResult struct {
	Trending     bool    `json:"trending"`
	Spiking      bool    `json:"spiking"`
	RSI          float64 `json:"rsi"`
	MentionRatio float64 `json:"mention_ratio"`
}

// Evaluator decides trending status from price momentum and mention growth
type Evaluator struct {
	repo *Repository
}

// NewEvaluator creates a trending evaluator
func NewEvaluator(repo *Repository) *Evaluator {
	return &Evaluator{repo: repo}
}

// Evaluate computes trending status for a coin from its recent closes and
// stored social metrics. closes must be chronological.
func (e *Evaluator) Evaluate(coinID int64, closes []float64) (*TrendingResult, error) {
	result := &TrendingResult{}

	if len(closes) > rsiPeriod {
		rsi := talib.Rsi(closes, rsiPeriod)
		result.RSI = rsi[len(rsi)-1]
	}

	recent, err := e.repo.AggregatesSince(coinID, time.Now().Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	baseline, err := e.repo.AggregatesSince(coinID, time.Now().Add(-7*24*time.Hour))
	if err != nil {
		return nil, err
	}

	// Trailing daily baseline over the week, excluding the last day
	priorMentions := baseline.Mentions24h - recent.Mentions24h
	if priorMentions > 0 {
		dailyBaseline := float64(priorMentions) / 6.0
		if dailyBaseline > 0 {
			result.MentionRatio = float64(recent.Mentions24h) / dailyBaseline
		}
	} else if recent.Mentions24h > 0 {
		result.MentionRatio = mentionSpikeMin // no history, any activity counts as a spike
	}

	result.Spiking = result.MentionRatio >= mentionSpikeMin
	result.Trending = result.Spiking && result.RSI >= rsiTrendingLevel

	if err := e.repo.SetActivity(coinID, result.Spiking, result.Trending); err != nil {
		return nil, err
	}
	return result, nil
}
