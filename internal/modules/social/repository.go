// Package social provides storage and aggregation for collected social
// metrics, plus the trending evaluator used by the scrape job.
package social

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/coinscope/coinscope/internal/domain"
)

// Aggregates summarizes a coin's stored social metrics over a window.
// Sentiment is averaged across platforms; engagement spread indicates
// whether attention is broad or concentrated on one platform.
type Aggregates struct {
	AvgSentiment    float64 `json:"avg_sentiment"` // -1..1
	EngagementStdev float64 `json:"engagement_stdev"`
	CommunitySize   int64   `json:"community_size"` // max followers across platforms
	Mentions24h     int64   `json:"mentions_24h"`
	Samples         int     `json:"samples"`
}

// Repository handles social metrics database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new social metrics repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "social").Logger(),
	}
}

// Insert appends a collected metric row
func (r *Repository) Insert(m domain.SocialMetric) error {
	_, err := r.db.Exec(`
		INSERT INTO social_metrics (coin_id, platform, followers, mentions_24h, engagement, sentiment, collected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.CoinID, m.Platform, m.Followers, m.Mentions24h, m.Engagement, m.Sentiment, m.CollectedAt)
	if err != nil {
		return fmt.Errorf("failed to insert social metric for coin %d: %w", m.CoinID, err)
	}
	return nil
}

// AggregatesSince computes per-coin aggregates over metrics collected after since
func (r *Repository) AggregatesSince(coinID int64, since time.Time) (*Aggregates, error) {
	rows, err := r.db.Query(`
		SELECT followers, mentions_24h, engagement, sentiment
		FROM social_metrics
		WHERE coin_id = ? AND collected_at >= ?
	`, coinID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query social metrics for coin %d: %w", coinID, err)
	}
	defer rows.Close()

	var sentiments, engagements []float64
	agg := &Aggregates{}
	for rows.Next() {
		var followers, mentions int64
		var engagement, sentiment float64
		if err := rows.Scan(&followers, &mentions, &engagement, &sentiment); err != nil {
			return nil, fmt.Errorf("failed to scan social metric: %w", err)
		}
		sentiments = append(sentiments, sentiment)
		engagements = append(engagements, engagement)
		agg.Mentions24h += mentions
		if followers > agg.CommunitySize {
			agg.CommunitySize = followers
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	agg.Samples = len(sentiments)
	if agg.Samples > 0 {
		agg.AvgSentiment = stat.Mean(sentiments, nil)
	}
	if len(engagements) > 1 {
		agg.EngagementStdev = stat.StdDev(engagements, nil)
	}
	return agg, nil
}

// SetActivity upserts the precomputed spiking/trending flags for a coin
func (r *Repository) SetActivity(coinID int64, spiking, trending bool) error {
	_, err := r.db.Exec(`
		INSERT INTO social_activity (coin_id, spiking, trending, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(coin_id) DO UPDATE SET
			spiking = excluded.spiking,
			trending = excluded.trending,
			updated_at = excluded.updated_at
	`, coinID, spiking, trending)
	if err != nil {
		return fmt.Errorf("failed to set social activity for coin %d: %w", coinID, err)
	}
	return nil
}

// IsSpiking returns the precomputed social-spike flag for a coin
func (r *Repository) IsSpiking(coinID int64) (bool, error) {
	var spiking bool
	err := r.db.QueryRow("SELECT spiking FROM social_activity WHERE coin_id = ?", coinID).Scan(&spiking)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query social activity for coin %d: %w", coinID, err)
	}
	return spiking, nil
}

// TrendingCoinIDs returns the ids of coins currently flagged as trending
func (r *Repository) TrendingCoinIDs() ([]int64, error) {
	rows, err := r.db.Query("SELECT coin_id FROM social_activity WHERE trending = 1 ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query trending coins: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan trending coin id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteBefore removes metrics older than cutoff, returning the deleted count
func (r *Repository) DeleteBefore(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM social_metrics WHERE collected_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old social metrics: %w", err)
	}
	return res.RowsAffected()
}
