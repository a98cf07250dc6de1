package processors

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/coinscope/coinscope/internal/clients/market"
	"github.com/coinscope/coinscope/internal/domain"
	"github.com/coinscope/coinscope/internal/jobs"
	"github.com/coinscope/coinscope/internal/modules/coins"
	"github.com/coinscope/coinscope/internal/modules/whales"
	"github.com/coinscope/coinscope/internal/queue"
)

const (
	// defaultWhaleMinUSD applies when a scan payload carries no threshold.
	defaultWhaleMinUSD = 100_000
	// scanLookback overlaps consecutive scans; duplicate transfers are
	// deduplicated on insert.
	scanLookback = time.Hour
	// impactWindow is the period the hourly impact analysis correlates.
	impactWindow = 24 * time.Hour
)

// TransferSource fetches large on-chain transfers for a token.
type TransferSource interface {
	GetLargeTransfers(ctx context.Context, address string, minUSD float64, since time.Time) ([]market.Transfer, error)
}

// WhaleDeps contains the dependencies of the whale-monitoring queue handlers.
type WhaleDeps struct {
	Coins     *coins.Repository
	Whales    *whales.Repository
	Transfers TransferSource
	Log       zerolog.Logger
}

// RegisterWhaleHandlers binds the whale-monitoring queue job names.
func RegisterWhaleHandlers(r *Registry, deps *WhaleDeps) {
	r.Register(jobs.JobScanWhaleTransactions, deps.handleScanWhaleTransactions)
	r.Register(jobs.JobAnalyzeWhaleImpact, deps.handleAnalyzeWhaleImpact)
}

// handleScanWhaleTransactions persists transfers above the USD threshold and
// raises the whale-activity flag when new ones appear. Lowering the flag is
// left to the impact analysis, which sees the full window.
func (d *WhaleDeps) handleScanWhaleTransactions(ctx context.Context, job *queue.Job, progress ProgressFunc) (any, error) {
	var p jobs.WhaleScanPayload
	if err := job.DecodePayload(&p); err != nil {
		return nil, err
	}
	minUSD := p.MinAmountUSD
	if minUSD <= 0 {
		minUSD = defaultWhaleMinUSD
	}

	transfers, err := d.Transfers.GetLargeTransfers(ctx, p.Address, minUSD, time.Now().Add(-scanLookback))
	if err != nil {
		return nil, err
	}
	progress(ProgressFetched)

	inserted := 0
	for _, t := range transfers {
		direction := "out"
		if t.ToAddress == p.Address {
			direction = "in"
		}
		isNew, err := d.Whales.Insert(domain.WhaleTransfer{
			CoinID:    p.CoinID,
			TxHash:    t.TxHash,
			AmountUSD: t.AmountUSD,
			Direction: direction,
			Timestamp: t.OccurredAt,
		})
		if err != nil {
			d.Log.Error().Err(err).Int64("coin_id", p.CoinID).Str("tx", t.TxHash).Msg("Failed to store whale transfer")
			continue
		}
		if isNew {
			inserted++
		}
	}
	progress(ProgressPersisted)

	if inserted > 0 {
		note := fmt.Sprintf("%d large transfers in the last hour", inserted)
		if err := d.Whales.SetActivity(p.CoinID, true, note); err != nil {
			return nil, err
		}
	}
	progress(ProgressDone)

	return map[string]any{"coin_id": p.CoinID, "new_transfers": inserted}, nil
}

// handleAnalyzeWhaleImpact correlates the last day of whale transfers with
// the price move over the same period and refreshes the activity flag.
func (d *WhaleDeps) handleAnalyzeWhaleImpact(ctx context.Context, job *queue.Job, progress ProgressFunc) (any, error) {
	var p jobs.WhaleImpactPayload
	if err := job.DecodePayload(&p); err != nil {
		return nil, err
	}

	transfers, err := d.Whales.TransfersSince(p.CoinID, time.Now().Add(-impactWindow))
	if err != nil {
		return nil, err
	}
	progress(ProgressFetched)

	var totalIn, totalOut float64
	for _, t := range transfers {
		if t.Direction == "in" {
			totalIn += t.AmountUSD
		} else {
			totalOut += t.AmountUSD
		}
	}

	closes, err := d.Coins.RecentCloses(p.CoinID, trendingCloses)
	if err != nil {
		return nil, err
	}
	var priceChangePct float64
	if len(closes) > 1 && closes[0] != 0 {
		priceChangePct = (closes[len(closes)-1] - closes[0]) / closes[0] * 100
	}
	progress(ProgressEvaluated)

	active := len(transfers) > 0
	note := ""
	if active {
		note = fmt.Sprintf("%d transfers in 24h ($%.0f in / $%.0f out), price %+.1f%%",
			len(transfers), totalIn, totalOut, priceChangePct)
	}
	if err := d.Whales.SetActivity(p.CoinID, active, note); err != nil {
		return nil, err
	}
	progress(ProgressDone)

	return map[string]any{
		"coin_id":          p.CoinID,
		"transfers":        len(transfers),
		"inflow_usd":       totalIn,
		"outflow_usd":      totalOut,
		"price_change_pct": priceChangePct,
		"active":           active,
	}, nil
}
