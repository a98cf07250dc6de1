package risk

import (
	"context"
	"time"
)

// LiquidityInput is liquidity derived from recent on-chain transfer volume and price
type LiquidityInput struct {
	LiquidityUSD float64
}

// HolderInput describes holder concentration for a token
type HolderInput struct {
	TopTenConcentrationPct float64 // share of supply held by the top 10 addresses
	HolderCount            int64
}

// ContractInput describes contract-level security signals
type ContractInput struct {
	Verified           bool
	Proxy              bool
	OwnershipRenounced bool
	LiquidityLocked    bool
	DeployedAt         time.Time
}

// SocialInput describes stored sentiment and community aggregates
type SocialInput struct {
	AvgSentiment  float64 // -1..1
	CommunitySize int64
}

// Sources are the four independently failing upstream fetches feeding an
// assessment. Each implementation may hit a different provider; the engine
// isolates every failure behind a neutral default.
type Sources struct {
	Liquidity LiquiditySource
	Holders   HolderSource
	Contract  ContractSource
	Social    SocialSource
}

// LiquiditySource derives USD liquidity for a token
type LiquiditySource interface {
	FetchLiquidity(ctx context.Context, coinID int64, address string) (*LiquidityInput, error)
}

// HolderSource fetches holder distribution for a token
type HolderSource interface {
	FetchHolders(ctx context.Context, coinID int64, address string) (*HolderInput, error)
}

// ContractSource fetches contract security metadata for a token
type ContractSource interface {
	FetchContract(ctx context.Context, coinID int64, address string) (*ContractInput, error)
}

// SocialSource fetches stored sentiment/community aggregates for a coin
type SocialSource interface {
	FetchSocial(ctx context.Context, coinID int64) (*SocialInput, error)
}
