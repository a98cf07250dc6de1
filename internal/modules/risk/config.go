// Package risk implements the risk assessment engine: four independently
// sourced factor scores combined into a weighted overall score, with a
// confidence measure that degrades when upstream sources fail.
package risk

import (
	"math"

	"github.com/coinscope/coinscope/internal/domain"
)

// weightSumTolerance bounds the accepted deviation of the weight sum from 1.0
const weightSumTolerance = 0.001

// Weights holds the factor weights. They must sum to 1.0 within tolerance.
type Weights struct {
	Liquidity          float64 `json:"liquidity"`
	HolderDistribution float64 `json:"holder_distribution"`
	ContractSecurity   float64 `json:"contract_security"`
	SocialSignals      float64 `json:"social_signals"`
}

// Sum returns the total of all four weights
func (w Weights) Sum() float64 {
	return w.Liquidity + w.HolderDistribution + w.ContractSecurity + w.SocialSignals
}

// Validate rejects weight sets whose sum deviates from 1.0 by more than the tolerance
func (w Weights) Validate() error {
	if math.Abs(w.Sum()-1.0) > weightSumTolerance {
		return domain.NewConfigValidation("risk weights must sum to 1.0 (got %.4f)", w.Sum())
	}
	return nil
}

// Thresholds holds tunable warning thresholds per factor
type Thresholds struct {
	LowLiquidityUSD      float64 `json:"low_liquidity_usd"`      // below this, warn about liquidity
	HighConcentrationPct float64 `json:"high_concentration_pct"` // above this, warn about holders
	YoungContractDays    int     `json:"young_contract_days"`    // below this, warn about contract age
	SmallCommunity       int64   `json:"small_community"`        // below this, warn about community size
}

// Config is the live engine configuration
type Config struct {
	Weights    Weights    `json:"weights"`
	Thresholds Thresholds `json:"thresholds"`
}

// DefaultConfig returns the engine defaults
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Liquidity:          0.35,
			HolderDistribution: 0.25,
			ContractSecurity:   0.25,
			SocialSignals:      0.15,
		},
		Thresholds: Thresholds{
			LowLiquidityUSD:      50_000,
			HighConcentrationPct: 70,
			YoungContractDays:    30,
			SmallCommunity:       1_000,
		},
	}
}

// ConfigPatch is a partial configuration update. Nil fields keep their
// current values; the merged result is re-validated before being applied.
type ConfigPatch struct {
	Weights    *Weights    `json:"weights,omitempty"`
	Thresholds *Thresholds `json:"thresholds,omitempty"`
}

// merge applies a patch to a copy of cfg and validates the result
func (c Config) merge(patch ConfigPatch) (Config, error) {
	merged := c
	if patch.Weights != nil {
		merged.Weights = *patch.Weights
	}
	if patch.Thresholds != nil {
		merged.Thresholds = *patch.Thresholds
	}
	if err := merged.Weights.Validate(); err != nil {
		return Config{}, err
	}
	return merged, nil
}
