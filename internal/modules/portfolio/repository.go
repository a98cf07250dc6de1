// Package portfolio provides the holdings repository and valuation math for
// the portfolio recompute job.
package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/coinscope/coinscope/internal/domain"
)

// Repository handles holdings database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new holdings repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "portfolio").Logger(),
	}
}

// GetByCoin returns holdings for a coin, optionally scoped to one user (userID > 0)
func (r *Repository) GetByCoin(coinID, userID int64) ([]domain.Holding, error) {
	query := `
		SELECT id, user_id, coin_id, amount, avg_buy_price, current_value, profit_loss, updated_at
		FROM holdings
		WHERE coin_id = ?`
	args := []any{coinID}
	if userID > 0 {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings for coin %d: %w", coinID, err)
	}
	defer rows.Close()

	var holdings []domain.Holding
	for rows.Next() {
		var h domain.Holding
		if err := rows.Scan(&h.ID, &h.UserID, &h.CoinID, &h.Amount, &h.AvgBuyPrice,
			&h.CurrentValue, &h.ProfitLoss, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// Insert adds a holding and returns its id
func (r *Repository) Insert(h domain.Holding) (int64, error) {
	res, err := r.db.Exec(`
		INSERT INTO holdings (user_id, coin_id, amount, avg_buy_price, current_value, profit_loss, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, h.UserID, h.CoinID, h.Amount, h.AvgBuyPrice, h.CurrentValue, h.ProfitLoss, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to insert holding: %w", err)
	}
	return res.LastInsertId()
}

// UpdateValuation writes the recomputed value and profit/loss for one holding.
// Single-row update by primary key; the storage layer's row atomicity is the
// only synchronization needed.
func (r *Repository) UpdateValuation(id int64, currentValue, profitLoss float64) error {
	_, err := r.db.Exec(`
		UPDATE holdings SET current_value = ?, profit_loss = ?, updated_at = ? WHERE id = ?
	`, currentValue, profitLoss, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update valuation for holding %d: %w", id, err)
	}
	return nil
}

// Revalue computes the current value and profit/loss of a holding at price
func Revalue(h domain.Holding, price float64) (currentValue, profitLoss float64) {
	currentValue = h.Amount * price
	profitLoss = currentValue - h.Amount*h.AvgBuyPrice
	return currentValue, profitLoss
}
