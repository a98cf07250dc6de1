package processors

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/coinscope/coinscope/internal/domain"
	"github.com/coinscope/coinscope/internal/jobs"
	"github.com/coinscope/coinscope/internal/modules/alerts"
	"github.com/coinscope/coinscope/internal/modules/coins"
	"github.com/coinscope/coinscope/internal/modules/social"
	"github.com/coinscope/coinscope/internal/modules/whales"
	"github.com/coinscope/coinscope/internal/notify"
	"github.com/coinscope/coinscope/internal/queue"
)

// defaultVolumeSpikePct applies when an alert has no explicit threshold.
const defaultVolumeSpikePct = 50.0

// AlertResult summarises one alert evaluation.
type AlertResult struct {
	AlertID   int64   `json:"alert_id"`
	Triggered bool    `json:"triggered"`
	Reason    string  `json:"reason,omitempty"`
	Value     float64 `json:"value,omitempty"`
}

// AlertDeps contains the dependencies of the alerts queue handlers.
type AlertDeps struct {
	Alerts    *alerts.Repository
	Coins     *coins.Repository
	Whales    *whales.Repository
	Social    *social.Repository
	Notifier  notify.Service
	Broadcast Broadcaster
	Log       zerolog.Logger
}

// RegisterAlertHandlers binds the alerts queue job names.
func RegisterAlertHandlers(r *Registry, deps *AlertDeps) {
	r.Register(jobs.JobCheckSpecificAlert, deps.handleCheckSpecificAlert)
	r.Register(jobs.JobCheckAlerts, deps.handleCheckAlerts)
}

// handleCheckSpecificAlert evaluates one alert by id. A missing or inactive
// alert is a non-triggering result, not an error.
func (d *AlertDeps) handleCheckSpecificAlert(ctx context.Context, job *queue.Job, progress ProgressFunc) (any, error) {
	var p jobs.AlertCheckPayload
	if err := job.DecodePayload(&p); err != nil {
		return nil, err
	}

	alert, err := d.Alerts.GetByID(p.AlertID)
	if err != nil {
		if domain.IsNotFound(err) {
			return &AlertResult{AlertID: p.AlertID, Triggered: false, Reason: "not active"}, nil
		}
		return nil, err
	}
	progress(ProgressFetched)

	result, err := d.evaluate(ctx, alert)
	if err != nil {
		return nil, err
	}
	progress(ProgressDone)
	return result, nil
}

// handleCheckAlerts evaluates every active alert. One failing alert is
// logged and does not stop the sweep.
func (d *AlertDeps) handleCheckAlerts(ctx context.Context, job *queue.Job, progress ProgressFunc) (any, error) {
	active, err := d.Alerts.GetActive()
	if err != nil {
		return nil, err
	}
	progress(ProgressFetched)

	triggered := 0
	for i := range active {
		result, err := d.evaluate(ctx, &active[i])
		if err != nil {
			d.Log.Error().Err(err).Int64("alert_id", active[i].ID).Msg("Alert evaluation failed")
			continue
		}
		if result.Triggered {
			triggered++
		}
	}
	progress(ProgressDone)

	return map[string]any{"checked": len(active), "triggered": triggered}, nil
}

// evaluate runs the type-specific predicate and fires notifications when it
// holds. Notification failures are logged, never fatal to the evaluation.
func (d *AlertDeps) evaluate(ctx context.Context, alert *domain.Alert) (*AlertResult, error) {
	if !alert.IsActive {
		return &AlertResult{AlertID: alert.ID, Triggered: false, Reason: "not active"}, nil
	}

	coin, err := d.Coins.GetByID(alert.CoinID)
	if err != nil {
		return nil, err
	}

	triggered, value, message, err := d.predicate(ctx, alert, coin)
	if err != nil {
		return nil, err
	}
	if !triggered {
		return &AlertResult{AlertID: alert.ID, Triggered: false, Value: value}, nil
	}

	now := time.Now().UTC()
	if err := d.Alerts.MarkTriggered(alert.ID, now); err != nil {
		return nil, err
	}
	alert.LastTriggered = &now

	notification := &notify.Notification{
		Alert:      alert,
		CoinSymbol: coin.Symbol,
		Value:      value,
		Message:    message,
		CreatedAt:  now,
	}
	if err := d.Notifier.Send(ctx, notification); err != nil {
		d.Log.Error().Err(err).Int64("alert_id", alert.ID).Msg("Notification delivery failed")
	}
	d.Broadcast.BroadcastToUser(alert.UserID, "alert.triggered", notification)

	return &AlertResult{AlertID: alert.ID, Triggered: true, Value: value}, nil
}

// predicate evaluates the alert condition against the latest snapshot.
// Whale and social alerts read precomputed activity flags instead of
// recomputing anything inline.
func (d *AlertDeps) predicate(ctx context.Context, alert *domain.Alert, coin *domain.Coin) (bool, float64, string, error) {
	switch alert.Type {
	case domain.AlertPriceAbove, domain.AlertPriceBelow:
		latest, err := d.Coins.LatestPrice(alert.CoinID)
		if err != nil {
			return false, 0, "", err
		}
		if latest == nil {
			return false, 0, "", nil
		}
		if alert.Type == domain.AlertPriceAbove {
			msg := fmt.Sprintf("%s price $%.6f crossed above $%.6f", coin.Symbol, latest.Price, alert.TargetValue)
			return latest.Price > alert.TargetValue, latest.Price, msg, nil
		}
		msg := fmt.Sprintf("%s price $%.6f dropped below $%.6f", coin.Symbol, latest.Price, alert.TargetValue)
		return latest.Price < alert.TargetValue, latest.Price, msg, nil

	case domain.AlertVolumeSpike:
		latest, err := d.Coins.LatestPrice(alert.CoinID)
		if err != nil {
			return false, 0, "", err
		}
		if latest == nil || alert.AvgVolume <= 0 {
			return false, 0, "", nil
		}
		threshold := alert.ThresholdPct
		if threshold <= 0 {
			threshold = defaultVolumeSpikePct
		}
		increasePct := (latest.Volume24h - alert.AvgVolume) / alert.AvgVolume * 100
		msg := fmt.Sprintf("%s 24h volume up %.1f%% over its average", coin.Symbol, increasePct)
		return increasePct >= threshold, increasePct, msg, nil

	case domain.AlertWhaleMovement:
		active, err := d.Whales.IsActive(alert.CoinID)
		if err != nil {
			return false, 0, "", err
		}
		return active, 0, fmt.Sprintf("Whale activity detected on %s", coin.Symbol), nil

	case domain.AlertSocialSpike:
		spiking, err := d.Social.IsSpiking(alert.CoinID)
		if err != nil {
			return false, 0, "", err
		}
		return spiking, 0, fmt.Sprintf("Social mentions spiking for %s", coin.Symbol), nil

	default:
		return false, 0, "", fmt.Errorf("unknown alert type: %s", alert.Type)
	}
}
