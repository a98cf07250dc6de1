// Package domain contains the shared models and error taxonomy used across modules.
package domain

import "time"

// Coin is a tracked token
type Coin struct {
	ID              int64     `json:"id"`
	Symbol          string    `json:"symbol"`
	Name            string    `json:"name"`
	ContractAddress string    `json:"contract_address"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
}

// PricePoint is a single price history row for a coin
type PricePoint struct {
	CoinID    int64     `json:"coin_id"`
	Price     float64   `json:"price"`
	Volume24h float64   `json:"volume_24h"`
	MarketCap float64   `json:"market_cap"`
	Timestamp time.Time `json:"timestamp"`
}

// Holding is a user's position in a coin
type Holding struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	CoinID       int64     `json:"coin_id"`
	Amount       float64   `json:"amount"`
	AvgBuyPrice  float64   `json:"avg_buy_price"`
	CurrentValue float64   `json:"current_value"`
	ProfitLoss   float64   `json:"profit_loss"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AlertType identifies the predicate an alert evaluates
type AlertType string

const (
	AlertPriceAbove    AlertType = "price_above"
	AlertPriceBelow    AlertType = "price_below"
	AlertVolumeSpike   AlertType = "volume_spike"
	AlertWhaleMovement AlertType = "whale_movement"
	AlertSocialSpike   AlertType = "social_spike"
)

// Alert is a user-configured trigger on coin activity
type Alert struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	CoinID        int64      `json:"coin_id"`
	Type          AlertType  `json:"type"`
	TargetValue   float64    `json:"target_value"`
	AvgVolume     float64    `json:"avg_volume"`    // baseline for volume_spike alerts
	ThresholdPct  float64    `json:"threshold_pct"` // volume_spike threshold, 0 = default 50%
	Channels      []string   `json:"channels"`
	IsActive      bool       `json:"is_active"`
	LastTriggered *time.Time `json:"last_triggered,omitempty"`
}

// SocialMetric is one collected data point for a coin on a platform
type SocialMetric struct {
	CoinID      int64     `json:"coin_id"`
	Platform    string    `json:"platform"`
	Followers   int64     `json:"followers"`
	Mentions24h int64     `json:"mentions_24h"`
	Engagement  float64   `json:"engagement"`
	Sentiment   float64   `json:"sentiment"` // -1..1
	CollectedAt time.Time `json:"collected_at"`
}

// WhaleTransfer is a large on-chain transfer detected by the whale scan
type WhaleTransfer struct {
	ID        int64     `json:"id"`
	CoinID    int64     `json:"coin_id"`
	TxHash    string    `json:"tx_hash"`
	AmountUSD float64   `json:"amount_usd"`
	Direction string    `json:"direction"` // in (to exchange) or out
	Timestamp time.Time `json:"timestamp"`
}

// RiskAssessment is one immutable scoring run for a coin
type RiskAssessment struct {
	ID            int64     `json:"id"`
	CoinID        int64     `json:"coin_id"`
	OverallScore  float64   `json:"overall_score"` // 1-100
	LiquidityScore float64  `json:"liquidity_score"`
	HolderScore   float64   `json:"holder_score"`
	ContractScore float64   `json:"contract_score"`
	SocialScore   float64   `json:"social_score"`
	Confidence    float64   `json:"confidence"` // 0-100
	Warnings      []string  `json:"warnings"`
	CreatedAt     time.Time `json:"created_at"`
}
