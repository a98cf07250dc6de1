// Package alerts provides the alert repository consumed by the alert-check jobs.
package alerts

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/coinscope/coinscope/internal/domain"
)

// Repository handles alert database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new alert repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "alerts").Logger(),
	}
}

const alertColumns = "id, user_id, coin_id, type, target_value, avg_volume, threshold_pct, channels, is_active, last_triggered"

func scanAlert(row interface{ Scan(...any) error }) (*domain.Alert, error) {
	var a domain.Alert
	var channels string
	var lastTriggered sql.NullTime
	err := row.Scan(&a.ID, &a.UserID, &a.CoinID, &a.Type, &a.TargetValue, &a.AvgVolume,
		&a.ThresholdPct, &channels, &a.IsActive, &lastTriggered)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(channels), &a.Channels); err != nil {
		return nil, fmt.Errorf("failed to decode channels for alert %d: %w", a.ID, err)
	}
	if lastTriggered.Valid {
		t := lastTriggered.Time
		a.LastTriggered = &t
	}
	return &a, nil
}

// GetByID returns one alert, or a NotFoundError when it does not exist
func (r *Repository) GetByID(id int64) (*domain.Alert, error) {
	row := r.db.QueryRow("SELECT "+alertColumns+" FROM alerts WHERE id = ?", id)
	alert, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, domain.NewNotFound("alert", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query alert %d: %w", id, err)
	}
	return alert, nil
}

// GetActive returns all active alerts
func (r *Repository) GetActive() ([]domain.Alert, error) {
	rows, err := r.db.Query("SELECT " + alertColumns + " FROM alerts WHERE is_active = 1")
	if err != nil {
		return nil, fmt.Errorf("failed to query active alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, *alert)
	}
	return alerts, rows.Err()
}

// Insert adds an alert and returns its id
func (r *Repository) Insert(a domain.Alert) (int64, error) {
	channels, err := json.Marshal(a.Channels)
	if err != nil {
		return 0, fmt.Errorf("failed to encode channels: %w", err)
	}
	res, err := r.db.Exec(`
		INSERT INTO alerts (user_id, coin_id, type, target_value, avg_volume, threshold_pct, channels, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.UserID, a.CoinID, a.Type, a.TargetValue, a.AvgVolume, a.ThresholdPct, string(channels), a.IsActive)
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert: %w", err)
	}
	return res.LastInsertId()
}

// MarkTriggered updates the alert's lastTriggered timestamp
func (r *Repository) MarkTriggered(id int64, at time.Time) error {
	_, err := r.db.Exec("UPDATE alerts SET last_triggered = ? WHERE id = ?", at, id)
	if err != nil {
		return fmt.Errorf("failed to mark alert %d triggered: %w", id, err)
	}
	return nil
}
