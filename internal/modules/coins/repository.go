// Package coins provides the tracked-coin and price-history repository.
package coins

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/coinscope/coinscope/internal/domain"
)

// Repository handles coin and price history database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new coin repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "coins").Logger(),
	}
}

// GetActive returns all actively tracked coins
func (r *Repository) GetActive() ([]domain.Coin, error) {
	rows, err := r.db.Query(`
		SELECT id, symbol, name, contract_address, active, created_at
		FROM coins
		WHERE active = 1
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active coins: %w", err)
	}
	defer rows.Close()

	var coins []domain.Coin
	for rows.Next() {
		var c domain.Coin
		if err := rows.Scan(&c.ID, &c.Symbol, &c.Name, &c.ContractAddress, &c.Active, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan coin: %w", err)
		}
		coins = append(coins, c)
	}
	return coins, rows.Err()
}

// GetByID returns one coin, or a NotFoundError when it does not exist
func (r *Repository) GetByID(id int64) (*domain.Coin, error) {
	var c domain.Coin
	err := r.db.QueryRow(`
		SELECT id, symbol, name, contract_address, active, created_at
		FROM coins WHERE id = ?
	`, id).Scan(&c.ID, &c.Symbol, &c.Name, &c.ContractAddress, &c.Active, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.NewNotFound("coin", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query coin %d: %w", id, err)
	}
	return &c, nil
}

// Insert adds a coin and returns its id
func (r *Repository) Insert(c domain.Coin) (int64, error) {
	res, err := r.db.Exec(`
		INSERT INTO coins (symbol, name, contract_address, active)
		VALUES (?, ?, ?, ?)
	`, c.Symbol, c.Name, c.ContractAddress, c.Active)
	if err != nil {
		return 0, fmt.Errorf("failed to insert coin %s: %w", c.Symbol, err)
	}
	return res.LastInsertId()
}

// InsertPricePoint appends a price history row
func (r *Repository) InsertPricePoint(p domain.PricePoint) error {
	_, err := r.db.Exec(`
		INSERT INTO price_history (coin_id, price, volume_24h, market_cap, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, p.CoinID, p.Price, p.Volume24h, p.MarketCap, p.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert price point for coin %d: %w", p.CoinID, err)
	}
	return nil
}

// LatestPrice returns the most recent price point for a coin, nil when none exists
func (r *Repository) LatestPrice(coinID int64) (*domain.PricePoint, error) {
	var p domain.PricePoint
	err := r.db.QueryRow(`
		SELECT coin_id, price, volume_24h, market_cap, timestamp
		FROM price_history
		WHERE coin_id = ?
		ORDER BY timestamp DESC
		LIMIT 1
	`, coinID).Scan(&p.CoinID, &p.Price, &p.Volume24h, &p.MarketCap, &p.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest price for coin %d: %w", coinID, err)
	}
	return &p, nil
}

// RecentCloses returns up to n most recent prices, oldest first
func (r *Repository) RecentCloses(coinID int64, n int) ([]float64, error) {
	rows, err := r.db.Query(`
		SELECT price FROM price_history
		WHERE coin_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, coinID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent closes for coin %d: %w", coinID, err)
	}
	defer rows.Close()

	var closes []float64
	for rows.Next() {
		var price float64
		if err := rows.Scan(&price); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		closes = append(closes, price)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query returns newest first, callers want chronological order
	for i, j := 0, len(closes)-1; i < j; i, j = i+1, j-1 {
		closes[i], closes[j] = closes[j], closes[i]
	}
	return closes, nil
}

// TopByMarketCap returns the ids of the n coins with the highest latest market cap
func (r *Repository) TopByMarketCap(n int) ([]domain.Coin, error) {
	rows, err := r.db.Query(`
		SELECT c.id, c.symbol, c.name, c.contract_address, c.active, c.created_at
		FROM coins c
		JOIN (
			SELECT coin_id, MAX(timestamp) AS ts
			FROM price_history
			GROUP BY coin_id
		) latest ON latest.coin_id = c.id
		JOIN price_history p ON p.coin_id = latest.coin_id AND p.timestamp = latest.ts
		WHERE c.active = 1
		ORDER BY p.market_cap DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query top coins: %w", err)
	}
	defer rows.Close()

	var coins []domain.Coin
	for rows.Next() {
		var c domain.Coin
		if err := rows.Scan(&c.ID, &c.Symbol, &c.Name, &c.ContractAddress, &c.Active, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan coin: %w", err)
		}
		coins = append(coins, c)
	}
	return coins, rows.Err()
}

// DeletePricesBefore removes price history older than cutoff, returning the deleted count
func (r *Repository) DeletePricesBefore(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM price_history WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old price history: %w", err)
	}
	return res.RowsAffected()
}
