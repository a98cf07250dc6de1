package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/coinscope/coinscope/internal/domain"
	"github.com/coinscope/coinscope/internal/realtime"
)

// Notification is a triggered-alert delivery.
type Notification struct {
	Alert      *domain.Alert `json:"alert"`
	CoinSymbol string        `json:"coin_symbol"`
	Value      float64       `json:"value"`
	Message    string        `json:"message"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Service delivers alert notifications over the channels configured on the alert.
type Service interface {
	Send(ctx context.Context, n *Notification) error
}

// Dispatcher routes notifications to per-channel senders. Unknown channels
// are logged and skipped so one bad channel cannot block the rest.
type Dispatcher struct {
	hub *realtime.Hub
	log zerolog.Logger
}

func NewDispatcher(hub *realtime.Hub, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		hub: hub,
		log: log.With().Str("component", "notify").Logger(),
	}
}

func (d *Dispatcher) Send(ctx context.Context, n *Notification) error {
	if n.Alert == nil {
		return fmt.Errorf("notification has no alert")
	}
	channels := n.Alert.Channels
	if len(channels) == 0 {
		channels = []string{"websocket"}
	}
	for _, ch := range channels {
		switch ch {
		case "websocket":
			d.hub.BroadcastToUser(n.Alert.UserID, "alert.triggered", n)
		case "log":
			d.log.Info().
				Int64("alert_id", n.Alert.ID).
				Str("alert_type", string(n.Alert.Type)).
				Str("coin", n.CoinSymbol).
				Float64("value", n.Value).
				Msg(n.Message)
		default:
			d.log.Warn().
				Int64("alert_id", n.Alert.ID).
				Str("channel", ch).
				Msg("Unknown notification channel, skipping")
		}
	}
	return nil
}
