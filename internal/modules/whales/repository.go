// Package whales stores large on-chain transfers and the per-coin
// whale activity flag derived from them.
package whales

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/coinscope/coinscope/internal/domain"
)

// Repository handles whale transfer database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new whale repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "whales").Logger(),
	}
}

// Insert records a transfer. Duplicate (coin, tx hash) pairs are ignored
// so rescanning a window is safe. Returns true when the row is new.
func (r *Repository) Insert(t domain.WhaleTransfer) (bool, error) {
	res, err := r.db.Exec(`
		INSERT OR IGNORE INTO whale_transfers (coin_id, tx_hash, amount_usd, direction, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, t.CoinID, t.TxHash, t.AmountUSD, t.Direction, t.Timestamp)
	if err != nil {
		return false, fmt.Errorf("failed to insert whale transfer: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// TransfersSince returns transfers for a coin newer than the cutoff, newest first
func (r *Repository) TransfersSince(coinID int64, since time.Time) ([]domain.WhaleTransfer, error) {
	rows, err := r.db.Query(`
		SELECT id, coin_id, tx_hash, amount_usd, direction, timestamp
		FROM whale_transfers
		WHERE coin_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC
	`, coinID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query whale transfers for coin %d: %w", coinID, err)
	}
	defer rows.Close()

	var transfers []domain.WhaleTransfer
	for rows.Next() {
		var t domain.WhaleTransfer
		if err := rows.Scan(&t.ID, &t.CoinID, &t.TxHash, &t.AmountUSD, &t.Direction, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan whale transfer: %w", err)
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

// SetActivity upserts the per-coin whale activity flag
func (r *Repository) SetActivity(coinID int64, active bool, note string) error {
	_, err := r.db.Exec(`
		INSERT INTO whale_activity (coin_id, active, impact_note, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(coin_id) DO UPDATE SET
			active = excluded.active,
			impact_note = excluded.impact_note,
			updated_at = excluded.updated_at
	`, coinID, active, note, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set whale activity for coin %d: %w", coinID, err)
	}
	return nil
}

// IsActive reports whether the coin currently has the whale activity flag set
func (r *Repository) IsActive(coinID int64) (bool, error) {
	var active bool
	err := r.db.QueryRow(`SELECT active FROM whale_activity WHERE coin_id = ?`, coinID).Scan(&active)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query whale activity for coin %d: %w", coinID, err)
	}
	return active, nil
}

// DeleteBefore removes transfers older than the cutoff and returns the count
func (r *Repository) DeleteBefore(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM whale_transfers WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old whale transfers: %w", err)
	}
	return res.RowsAffected()
}
