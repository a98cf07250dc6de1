package processors

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/coinscope/coinscope/internal/clients/market"
	"github.com/coinscope/coinscope/internal/domain"
	"github.com/coinscope/coinscope/internal/jobs"
	"github.com/coinscope/coinscope/internal/modules/coins"
	"github.com/coinscope/coinscope/internal/modules/portfolio"
	"github.com/coinscope/coinscope/internal/queue"
)

// Broadcaster pushes job results to connected clients.
type Broadcaster interface {
	BroadcastToUser(userID int64, msgType string, payload any)
	BroadcastToCoin(coinID int64, msgType string, payload any)
}

// QuoteSource fetches the current market snapshot for a token.
type QuoteSource interface {
	GetQuote(ctx context.Context, address string) (*market.Quote, error)
}

// PriceDeps contains the dependencies of the price-updates queue handlers.
type PriceDeps struct {
	Coins     *coins.Repository
	Holdings  *portfolio.Repository
	Quotes    QuoteSource
	Broadcast Broadcaster
	Log       zerolog.Logger
}

// RegisterPriceHandlers binds the price-updates queue job names.
func RegisterPriceHandlers(r *Registry, deps *PriceDeps) {
	r.Register(jobs.JobUpdateCoinPrice, deps.handleUpdateCoinPrice)
	r.Register(jobs.JobRecomputePortfolioValues, deps.handleRecomputePortfolioValues)
}

// handleUpdateCoinPrice fetches the latest quote, appends it to price
// history and broadcasts the update to subscribers of the coin. An
// unavailable quote fails the job so the retry policy applies.
func (d *PriceDeps) handleUpdateCoinPrice(ctx context.Context, job *queue.Job, progress ProgressFunc) (any, error) {
	var p jobs.PriceUpdatePayload
	if err := job.DecodePayload(&p); err != nil {
		return nil, err
	}

	quote, err := d.Quotes.GetQuote(ctx, p.Address)
	if err != nil {
		return nil, err
	}
	progress(ProgressFetched)

	point := domain.PricePoint{
		CoinID:    p.CoinID,
		Price:     quote.PriceUSD,
		Volume24h: quote.Volume24h,
		MarketCap: quote.MarketCap,
		Timestamp: time.Now().UTC(),
	}
	if err := d.Coins.InsertPricePoint(point); err != nil {
		return nil, err
	}
	progress(ProgressPersisted)

	d.Broadcast.BroadcastToCoin(p.CoinID, "price.update", point)
	progress(ProgressDone)

	return map[string]any{"coin_id": p.CoinID, "price": quote.PriceUSD}, nil
}

// handleRecomputePortfolioValues revalues every holding of the coin at the
// latest stored price and broadcasts a portfolio update per holding owner.
func (d *PriceDeps) handleRecomputePortfolioValues(ctx context.Context, job *queue.Job, progress ProgressFunc) (any, error) {
	var p jobs.PortfolioRecomputePayload
	if err := job.DecodePayload(&p); err != nil {
		return nil, err
	}

	latest, err := d.Coins.LatestPrice(p.CoinID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return map[string]any{"coin_id": p.CoinID, "updated": 0, "reason": "no price history"}, nil
	}
	progress(ProgressFetched)

	holdings, err := d.Holdings.GetByCoin(p.CoinID, p.UserID)
	if err != nil {
		return nil, err
	}
	progress(ProgressEvaluated)

	updated := 0
	for _, h := range holdings {
		currentValue, profitLoss := portfolio.Revalue(h, latest.Price)
		if err := d.Holdings.UpdateValuation(h.ID, currentValue, profitLoss); err != nil {
			d.Log.Error().Err(err).Int64("holding_id", h.ID).Msg("Failed to update holding valuation")
			continue
		}
		h.CurrentValue = currentValue
		h.ProfitLoss = profitLoss
		d.Broadcast.BroadcastToUser(h.UserID, "portfolio.update", h)
		updated++
	}
	progress(ProgressDone)

	return map[string]any{"coin_id": p.CoinID, "updated": updated}, nil
}
