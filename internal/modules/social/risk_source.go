package social

import (
	"context"
	"fmt"
	"time"

	"github.com/coinscope/coinscope/internal/modules/risk"
)

// RiskSource feeds stored social aggregates into risk assessments.
// Collected metrics older than the window do not count.
type RiskSource struct {
	repo   *Repository
	window time.Duration
}

func NewRiskSource(repo *Repository) *RiskSource {
	return &RiskSource{repo: repo, window: 24 * time.Hour}
}

func (s *RiskSource) FetchSocial(ctx context.Context, coinID int64) (*risk.SocialInput, error) {
	agg, err := s.repo.AggregatesSince(coinID, time.Now().Add(-s.window))
	if err != nil {
		return nil, err
	}
	if agg.Samples == 0 {
		return nil, fmt.Errorf("no social metrics collected for coin %d in the last %s", coinID, s.window)
	}
	return &risk.SocialInput{
		AvgSentiment:  agg.AvgSentiment,
		CommunitySize: agg.CommunitySize,
	}, nil
}
