package risk

import (
	"fmt"
	"time"
)

// neutralScore substitutes for a factor whose source failed
const neutralScore = 50.0

// scoreLiquidity maps USD liquidity to a 0-100 score via a step function.
// Monotonic non-decreasing across the buckets.
func scoreLiquidity(in LiquidityInput, th Thresholds) (float64, []string) {
	var warnings []string
	usd := in.LiquidityUSD

	var score float64
	switch {
	case usd >= 1_000_000:
		score = 100
	case usd >= 500_000:
		score = 80
	case usd >= 100_000:
		score = 60
	case usd >= 50_000:
		score = 40
	case usd >= 10_000:
		score = 20
	default:
		score = 10
	}

	if usd < th.LowLiquidityUSD {
		warnings = append(warnings, fmt.Sprintf("Very low liquidity ($%.0f)", usd))
	}
	return score, warnings
}

// scoreHolders maps top-holder concentration to a 0-100 score.
// Lower concentration scores higher.
func scoreHolders(in HolderInput, th Thresholds) (float64, []string) {
	var warnings []string
	pct := in.TopTenConcentrationPct

	var score float64
	switch {
	case pct <= 10:
		score = 100
	case pct <= 20:
		score = 80
	case pct <= 30:
		score = 60
	case pct <= 50:
		score = 40
	case pct <= 70:
		score = 20
	default:
		score = 10
	}

	if pct > th.HighConcentrationPct {
		warnings = append(warnings, fmt.Sprintf("Top 10 holders control %.1f%% of supply", pct))
	}
	return score, warnings
}

// scoreContract awards additive security bonuses, capped at 100
func scoreContract(in ContractInput, th Thresholds) (float64, []string) {
	var warnings []string

	var score float64
	if in.Verified {
		score += 40
	} else {
		warnings = append(warnings, "Contract source is not verified")
	}
	if in.OwnershipRenounced {
		score += 30
	}
	if !in.Proxy {
		score += 20
	}
	if in.LiquidityLocked {
		score += 10
	}
	if score > 100 {
		score = 100
	}

	if !in.DeployedAt.IsZero() {
		age := time.Since(in.DeployedAt)
		if age < time.Duration(th.YoungContractDays)*24*time.Hour {
			warnings = append(warnings, fmt.Sprintf("Contract is only %d days old", int(age.Hours()/24)))
		}
	}
	return score, warnings
}

// scoreSocial maps aggregated sentiment (-1..1) linearly to 0-100
func scoreSocial(in SocialInput, th Thresholds) (float64, []string) {
	var warnings []string

	sentiment := in.AvgSentiment
	if sentiment < -1 {
		sentiment = -1
	} else if sentiment > 1 {
		sentiment = 1
	}
	score := (sentiment + 1) * 50

	if in.AvgSentiment < 0 {
		warnings = append(warnings, "Negative social sentiment")
	}
	if in.CommunitySize > 0 && in.CommunitySize < th.SmallCommunity {
		warnings = append(warnings, fmt.Sprintf("Very small community (%d members)", in.CommunitySize))
	}
	return score, warnings
}
