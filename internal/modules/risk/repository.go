package risk

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/coinscope/coinscope/internal/domain"
)

// Repository persists risk assessments. Rows are append-only.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new risk assessment repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "risk").Logger(),
	}
}

// Save appends an assessment row and fills in its id
func (r *Repository) Save(a *domain.RiskAssessment) error {
	warnings, err := json.Marshal(a.Warnings)
	if err != nil {
		return fmt.Errorf("failed to encode warnings: %w", err)
	}
	res, err := r.db.Exec(`
		INSERT INTO risk_assessments
			(coin_id, overall_score, liquidity_score, holder_score, contract_score, social_score, confidence, warnings, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.CoinID, a.OverallScore, a.LiquidityScore, a.HolderScore, a.ContractScore,
		a.SocialScore, a.Confidence, string(warnings), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert risk assessment: %w", err)
	}
	a.ID, err = res.LastInsertId()
	return err
}

// History returns the most recent assessments for a coin, newest first
func (r *Repository) History(coinID int64, limit int) ([]domain.RiskAssessment, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(`
		SELECT id, coin_id, overall_score, liquidity_score, holder_score, contract_score, social_score, confidence, warnings, created_at
		FROM risk_assessments
		WHERE coin_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, coinID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk history for coin %d: %w", coinID, err)
	}
	defer rows.Close()

	var history []domain.RiskAssessment
	for rows.Next() {
		var a domain.RiskAssessment
		var warnings string
		if err := rows.Scan(&a.ID, &a.CoinID, &a.OverallScore, &a.LiquidityScore, &a.HolderScore,
			&a.ContractScore, &a.SocialScore, &a.Confidence, &warnings, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan risk assessment: %w", err)
		}
		if err := json.Unmarshal([]byte(warnings), &a.Warnings); err != nil {
			return nil, fmt.Errorf("failed to decode warnings for assessment %d: %w", a.ID, err)
		}
		history = append(history, a)
	}
	return history, rows.Err()
}
