// Package jobs defines the job names and payload shapes shared between the
// scheduler, which enqueues them, and the processors, which execute them.
// Every payload shape is fixed per job name.
package jobs

// Job names, grouped by queue
const (
	// price-updates
	JobUpdateCoinPrice          = "update-coin-price"
	JobRecomputePortfolioValues = "recompute-portfolio-values"

	// social-scraping
	JobScrapeSocialData = "scrape-social-data"

	// risk-assessment
	JobAssessCoinRisk = "assess-coin-risk"

	// whale-monitoring
	JobScanWhaleTransactions = "scan-whale-transactions"
	JobAnalyzeWhaleImpact    = "analyze-whale-impact"

	// alerts
	JobCheckAlerts        = "check-alerts"
	JobCheckSpecificAlert = "check-specific-alert"

	// maintenance
	JobCleanupOldPriceData     = "cleanup-old-price-data"
	JobCleanupOldSocialMetrics = "cleanup-old-social-metrics"
	JobWarmCache               = "warm-cache"
	JobBackupDatabase          = "backup-database"
)

// PriceUpdatePayload drives update-coin-price
type PriceUpdatePayload struct {
	CoinID  int64  `json:"coin_id"`
	Symbol  string `json:"symbol"`
	Address string `json:"address"`
}

// SocialScrapePayload drives scrape-social-data
type SocialScrapePayload struct {
	CoinID    int64    `json:"coin_id"`
	Symbol    string   `json:"symbol"`
	Platforms []string `json:"platforms,omitempty"`
}

// RiskAssessPayload drives assess-coin-risk
type RiskAssessPayload struct {
	CoinID       int64  `json:"coin_id"`
	Address      string `json:"address"`
	ForceRefresh bool   `json:"force_refresh,omitempty"`
}

// WhaleScanPayload drives scan-whale-transactions
type WhaleScanPayload struct {
	CoinID       int64   `json:"coin_id"`
	Address      string  `json:"address"`
	MinAmountUSD float64 `json:"min_amount_usd,omitempty"`
}

// WhaleImpactPayload drives analyze-whale-impact
type WhaleImpactPayload struct {
	CoinID int64 `json:"coin_id"`
}

// AlertCheckPayload drives check-specific-alert. check-alerts carries an
// empty payload and evaluates every active alert.
type AlertCheckPayload struct {
	AlertID int64 `json:"alert_id"`
}

// PortfolioRecomputePayload drives recompute-portfolio-values.
// UserID zero means all users holding the coin.
type PortfolioRecomputePayload struct {
	CoinID int64 `json:"coin_id"`
	UserID int64 `json:"user_id,omitempty"`
}

// CleanupPayload drives the retention cleanup jobs
type CleanupPayload struct {
	RetentionDays int `json:"retention_days"`
}
