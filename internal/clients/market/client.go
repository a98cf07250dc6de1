// Package market provides the upstream market data API client used by the
// background jobs for prices, on-chain data and social statistics.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/coinscope/coinscope/internal/domain"
)

// Client talks to the market data aggregator API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new market data client
func NewClient(baseURL, apiKey string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("client", "market").Logger(),
	}
}

// Quote is a point-in-time market snapshot for a coin.
type Quote struct {
	PriceUSD       float64 `json:"price_usd"`
	Volume24h      float64 `json:"volume_24h"`
	MarketCap      float64 `json:"market_cap"`
	PriceChange24h float64 `json:"price_change_24h"`
}

// GetQuote fetches the current market quote for a contract address.
func (c *Client) GetQuote(ctx context.Context, address string) (*Quote, error) {
	var quote Quote
	if err := c.get(ctx, "/v1/quote/"+url.PathEscape(address), &quote); err != nil {
		return nil, err
	}
	if quote.PriceUSD <= 0 {
		return nil, fmt.Errorf("quote for %s has no price", address)
	}
	return &quote, nil
}

// SocialStats is the aggregated social activity reported by the upstream.
type SocialStats struct {
	Platform      string  `json:"platform"`
	Mentions      int64   `json:"mentions"`
	Sentiment     float64 `json:"sentiment"` // -1..1
	Engagement    float64 `json:"engagement"`
	CommunitySize int64   `json:"community_size"`
}

// GetSocialStats fetches per-platform social activity for a coin symbol.
func (c *Client) GetSocialStats(ctx context.Context, symbol string) ([]SocialStats, error) {
	var stats []SocialStats
	if err := c.get(ctx, "/v1/social/"+url.PathEscape(symbol), &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// Transfer is a single large on-chain transfer.
type Transfer struct {
	TxHash      string    `json:"tx_hash"`
	FromAddress string    `json:"from_address"`
	ToAddress   string    `json:"to_address"`
	AmountUSD   float64   `json:"amount_usd"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// GetLargeTransfers fetches transfers above minUSD since the given time.
func (c *Client) GetLargeTransfers(ctx context.Context, address string, minUSD float64, since time.Time) ([]Transfer, error) {
	path := fmt.Sprintf("/v1/transfers/%s?min_usd=%.0f&since=%d",
		url.PathEscape(address), minUSD, since.Unix())
	var transfers []Transfer
	if err := c.get(ctx, path, &transfers); err != nil {
		return nil, err
	}
	return transfers, nil
}

// get performs a GET request and decodes the JSON body into dest.
// Network failures and 5xx responses are wrapped as transient so the
// job layer retries them; 4xx responses are permanent.
func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.NewTransient("market request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return domain.NewTransient("market request",
			fmt.Errorf("API returned status %d for %s", resp.StatusCode, path))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API returned status %d for %s: %s", resp.StatusCode, path, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to parse response for %s: %w", path, err)
	}
	return nil
}
