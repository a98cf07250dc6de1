package market

import (
	"context"
	"time"

	"github.com/coinscope/coinscope/internal/modules/risk"
)

// RiskSources adapts the market API into the on-chain inputs of a risk
// assessment. The social input comes from stored aggregates, not from here.
type RiskSources struct {
	client *Client
}

func NewRiskSources(client *Client) *RiskSources {
	return &RiskSources{client: client}
}

type liquidityResponse struct {
	LiquidityUSD float64 `json:"liquidity_usd"`
}

func (s *RiskSources) FetchLiquidity(ctx context.Context, coinID int64, address string) (*risk.LiquidityInput, error) {
	var resp liquidityResponse
	if err := s.client.get(ctx, "/v1/liquidity/"+address, &resp); err != nil {
		return nil, err
	}
	return &risk.LiquidityInput{LiquidityUSD: resp.LiquidityUSD}, nil
}

type holdersResponse struct {
	TopTenPct   float64 `json:"top_ten_pct"`
	HolderCount int64   `json:"holder_count"`
}

func (s *RiskSources) FetchHolders(ctx context.Context, coinID int64, address string) (*risk.HolderInput, error) {
	var resp holdersResponse
	if err := s.client.get(ctx, "/v1/holders/"+address, &resp); err != nil {
		return nil, err
	}
	return &risk.HolderInput{
		TopTenConcentrationPct: resp.TopTenPct,
		HolderCount:            resp.HolderCount,
	}, nil
}

type contractResponse struct {
	Verified           bool      `json:"verified"`
	Proxy              bool      `json:"proxy"`
	OwnershipRenounced bool      `json:"ownership_renounced"`
	LiquidityLocked    bool      `json:"liquidity_locked"`
	DeployedAt         time.Time `json:"deployed_at"`
}

func (s *RiskSources) FetchContract(ctx context.Context, coinID int64, address string) (*risk.ContractInput, error) {
	var resp contractResponse
	if err := s.client.get(ctx, "/v1/contract/"+address, &resp); err != nil {
		return nil, err
	}
	return &risk.ContractInput{
		Verified:           resp.Verified,
		Proxy:              resp.Proxy,
		OwnershipRenounced: resp.OwnershipRenounced,
		LiquidityLocked:    resp.LiquidityLocked,
		DeployedAt:         resp.DeployedAt,
	}, nil
}
