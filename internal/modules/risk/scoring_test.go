package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScoreLiquidityBuckets(t *testing.T) {
	th := DefaultConfig().Thresholds

	tests := []struct {
		usd  float64
		want float64
	}{
		{0, 10},
		{9_999, 10},
		{10_000, 20},
		{49_999, 20},
		{50_000, 40},
		{99_999, 40},
		{100_000, 60},
		{499_999, 60},
		{500_000, 80},
		{999_999, 80},
		{1_000_000, 100},
		{50_000_000, 100},
	}
	for _, tc := range tests {
		score, _ := scoreLiquidity(LiquidityInput{LiquidityUSD: tc.usd}, th)
		assert.Equal(t, tc.want, score, "usd=%.0f", tc.usd)
	}
}

func TestScoreLiquidityMonotonic(t *testing.T) {
	th := DefaultConfig().Thresholds

	prev := -1.0
	for usd := 0.0; usd <= 2_000_000; usd += 1_000 {
		score, _ := scoreLiquidity(LiquidityInput{LiquidityUSD: usd}, th)
		assert.GreaterOrEqual(t, score, prev, "score decreased at usd=%.0f", usd)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 100.0)
		prev = score
	}
}

func TestScoreLiquidityWarnsBelowThreshold(t *testing.T) {
	th := DefaultConfig().Thresholds

	_, warnings := scoreLiquidity(LiquidityInput{LiquidityUSD: 20_000}, th)
	assert.Len(t, warnings, 1)

	_, warnings = scoreLiquidity(LiquidityInput{LiquidityUSD: 200_000}, th)
	assert.Empty(t, warnings)
}

func TestScoreHoldersInverseBuckets(t *testing.T) {
	th := DefaultConfig().Thresholds

	tests := []struct {
		pct  float64
		want float64
	}{
		{5, 100},
		{10, 100},
		{15, 80},
		{25, 60},
		{45, 40},
		{65, 20},
		{85, 10},
	}
	for _, tc := range tests {
		score, _ := scoreHolders(HolderInput{TopTenConcentrationPct: tc.pct}, th)
		assert.Equal(t, tc.want, score, "pct=%.0f", tc.pct)
	}

	_, warnings := scoreHolders(HolderInput{TopTenConcentrationPct: 85}, th)
	assert.Len(t, warnings, 1)
}

func TestScoreContractBonuses(t *testing.T) {
	th := DefaultConfig().Thresholds

	score, warnings := scoreContract(ContractInput{
		Verified:           true,
		OwnershipRenounced: true,
		Proxy:              false,
		LiquidityLocked:    true,
	}, th)
	assert.Equal(t, 100.0, score)
	assert.Empty(t, warnings)

	score, warnings = scoreContract(ContractInput{Proxy: true}, th)
	assert.Equal(t, 0.0, score)
	assert.Len(t, warnings, 1, "unverified contract should warn")

	score, _ = scoreContract(ContractInput{Verified: true, Proxy: true}, th)
	assert.Equal(t, 40.0, score)
}

func TestScoreContractWarnsYoungContract(t *testing.T) {
	th := DefaultConfig().Thresholds

	_, warnings := scoreContract(ContractInput{
		Verified:   true,
		DeployedAt: time.Now().Add(-48 * time.Hour),
	}, th)
	assert.Len(t, warnings, 1)

	_, warnings = scoreContract(ContractInput{
		Verified:   true,
		DeployedAt: time.Now().Add(-365 * 24 * time.Hour),
	}, th)
	assert.Empty(t, warnings)
}

func TestScoreSocialLinearMap(t *testing.T) {
	th := DefaultConfig().Thresholds

	tests := []struct {
		sentiment float64
		want      float64
	}{
		{-1, 0},
		{-0.5, 25},
		{0, 50},
		{0.5, 75},
		{1, 100},
		{2, 100},  // clamped
		{-3, 0},   // clamped
	}
	for _, tc := range tests {
		score, _ := scoreSocial(SocialInput{AvgSentiment: tc.sentiment, CommunitySize: 100_000}, th)
		assert.InDelta(t, tc.want, score, 0.001, "sentiment=%.1f", tc.sentiment)
	}
}

func TestScoreSocialWarnings(t *testing.T) {
	th := DefaultConfig().Thresholds

	_, warnings := scoreSocial(SocialInput{AvgSentiment: -0.2, CommunitySize: 500}, th)
	assert.Len(t, warnings, 2)

	_, warnings = scoreSocial(SocialInput{AvgSentiment: 0.4, CommunitySize: 50_000}, th)
	assert.Empty(t, warnings)
}
