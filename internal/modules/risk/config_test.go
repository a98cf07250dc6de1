package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinscope/coinscope/internal/domain"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Weights.Validate())
	assert.InDelta(t, 1.0, cfg.Weights.Sum(), weightSumTolerance)
}

func TestWeightsValidate(t *testing.T) {
	tests := []struct {
		name    string
		weights Weights
		wantErr bool
	}{
		{"exact sum", Weights{0.35, 0.25, 0.25, 0.15}, false},
		{"within tolerance", Weights{0.35, 0.25, 0.25, 0.1505}, false},
		{"sum too high", Weights{0.4, 0.3, 0.3, 0.15}, true},
		{"sum too low", Weights{0.2, 0.2, 0.2, 0.2}, true},
		{"all zero", Weights{}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.weights.Validate()
			if tc.wantErr {
				require.Error(t, err)
				var cfgErr *domain.ConfigValidationError
				assert.ErrorAs(t, err, &cfgErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMergeRejectsInvalidWeights(t *testing.T) {
	cfg := DefaultConfig()

	bad := Weights{0.9, 0.9, 0.9, 0.9}
	_, err := cfg.merge(ConfigPatch{Weights: &bad})
	require.Error(t, err)

	// Original is untouched after a rejected merge.
	assert.InDelta(t, 1.0, cfg.Weights.Sum(), weightSumTolerance)
}

func TestMergeKeepsUnpatchedFields(t *testing.T) {
	cfg := DefaultConfig()

	newWeights := Weights{0.30, 0.25, 0.25, 0.20}
	merged, err := cfg.merge(ConfigPatch{Weights: &newWeights})
	require.NoError(t, err)

	assert.Equal(t, newWeights, merged.Weights)
	assert.Equal(t, cfg.Thresholds, merged.Thresholds)
}

func TestMergeThresholdsOnly(t *testing.T) {
	cfg := DefaultConfig()

	th := Thresholds{LowLiquidityUSD: 25_000, HighConcentrationPct: 60, YoungContractDays: 14, SmallCommunity: 500}
	merged, err := cfg.merge(ConfigPatch{Thresholds: &th})
	require.NoError(t, err)

	assert.Equal(t, th, merged.Thresholds)
	assert.Equal(t, cfg.Weights, merged.Weights)
}
