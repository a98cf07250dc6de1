package risk

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/coinscope/coinscope/internal/cache"
	"github.com/coinscope/coinscope/internal/domain"
)

const (
	// cacheTTL is how long an assessment stays valid for repeated requests
	cacheTTL = 15 * time.Minute

	// confidencePenalty is subtracted from confidence per failed source
	confidencePenalty = 25.0
)

// AssessInput describes one assessment request
type AssessInput struct {
	CoinID       int64
	Address      string
	ForceRefresh bool
	// WeightOverride replaces the configured weights for this call only.
	// The job handler passes its own fixed weights here.
	WeightOverride *Weights
}

// Engine produces 1-100 risk scores from four independently-sourced factors,
// staying useful when some sources are unavailable.
type Engine struct {
	mu      sync.RWMutex // guards cfg
	cfg     Config
	sources Sources
	cache   cache.Service
	repo    *Repository
	log     zerolog.Logger

	// inflight deduplicates concurrent assessments per coin id so two
	// cache misses do not run the full computation twice.
	flightMu sync.Mutex
	inflight map[int64]*flight
}

type flight struct {
	done   chan struct{}
	result *domain.RiskAssessment
	err    error
}

// NewEngine creates a risk engine with the given sources and default config
func NewEngine(sources Sources, cacheSvc cache.Service, repo *Repository, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:      DefaultConfig(),
		sources:  sources,
		cache:    cacheSvc,
		repo:     repo,
		log:      log.With().Str("service", "risk_engine").Logger(),
		inflight: make(map[int64]*flight),
	}
}

// Config returns a copy of the live configuration
func (e *Engine) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// UpdateConfig merges a partial update into the live configuration.
// The merged weights are re-validated; invalid updates are rejected and the
// previous configuration stays in effect.
func (e *Engine) UpdateConfig(patch ConfigPatch) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	merged, err := e.cfg.merge(patch)
	if err != nil {
		return err
	}
	e.cfg = merged
	return nil
}

func cacheKey(coinID int64) string {
	return fmt.Sprintf("risk:assessment:%d", coinID)
}

// AssessRisk scores a coin. Unless ForceRefresh is set, a cached assessment
// newer than 15 minutes is returned. Concurrent calls for the same coin share
// one computation.
func (e *Engine) AssessRisk(ctx context.Context, in AssessInput) (*domain.RiskAssessment, error) {
	if in.WeightOverride != nil {
		if err := in.WeightOverride.Validate(); err != nil {
			return nil, err
		}
	}

	if !in.ForceRefresh {
		var cached domain.RiskAssessment
		hit, err := e.cache.Get(ctx, cacheKey(in.CoinID), &cached)
		if err != nil {
			e.log.Warn().Err(err).Int64("coin_id", in.CoinID).Msg("Risk cache read failed")
		}
		if hit {
			return &cached, nil
		}
	}

	e.flightMu.Lock()
	if f, ok := e.inflight[in.CoinID]; ok {
		e.flightMu.Unlock()
		select {
		case <-f.done:
			return f.result, f.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f := &flight{done: make(chan struct{})}
	e.inflight[in.CoinID] = f
	e.flightMu.Unlock()

	f.result, f.err = e.assess(ctx, in)
	close(f.done)

	e.flightMu.Lock()
	delete(e.inflight, in.CoinID)
	e.flightMu.Unlock()

	return f.result, f.err
}

// assess runs the full computation: four isolated source fetches, sub-scores,
// weighted combination, persistence and caching.
func (e *Engine) assess(ctx context.Context, in AssessInput) (*domain.RiskAssessment, error) {
	cfg := e.Config()
	weights := cfg.Weights
	if in.WeightOverride != nil {
		weights = *in.WeightOverride
	}

	confidence := 100.0
	var warnings []string

	liquidity := LiquidityInput{}
	liquidityOK := true
	if got, err := e.sources.Liquidity.FetchLiquidity(ctx, in.CoinID, in.Address); err != nil {
		confidence -= confidencePenalty
		liquidityOK = false
		warnings = append(warnings, "Liquidity data unavailable, using neutral score")
		e.logSourceFailure("liquidity", in.CoinID, err)
	} else {
		liquidity = *got
	}

	holders := HolderInput{}
	holdersOK := true
	if got, err := e.sources.Holders.FetchHolders(ctx, in.CoinID, in.Address); err != nil {
		confidence -= confidencePenalty
		holdersOK = false
		warnings = append(warnings, "Holder distribution unavailable, using neutral score")
		e.logSourceFailure("holders", in.CoinID, err)
	} else {
		holders = *got
	}

	contract := ContractInput{}
	contractOK := true
	if got, err := e.sources.Contract.FetchContract(ctx, in.CoinID, in.Address); err != nil {
		confidence -= confidencePenalty
		contractOK = false
		warnings = append(warnings, "Contract security data unavailable, using neutral score")
		e.logSourceFailure("contract", in.CoinID, err)
	} else {
		contract = *got
	}

	social := SocialInput{}
	socialOK := true
	if got, err := e.sources.Social.FetchSocial(ctx, in.CoinID); err != nil {
		confidence -= confidencePenalty
		socialOK = false
		warnings = append(warnings, "Social metrics unavailable, using neutral score")
		e.logSourceFailure("social", in.CoinID, err)
	} else {
		social = *got
	}

	if confidence < 0 {
		confidence = 0
	}

	liquidityScore := neutralScore
	if liquidityOK {
		var w []string
		liquidityScore, w = scoreLiquidity(liquidity, cfg.Thresholds)
		warnings = append(warnings, w...)
	}

	holderScore := neutralScore
	if holdersOK {
		var w []string
		holderScore, w = scoreHolders(holders, cfg.Thresholds)
		warnings = append(warnings, w...)
	}

	contractScore := neutralScore
	if contractOK {
		var w []string
		contractScore, w = scoreContract(contract, cfg.Thresholds)
		warnings = append(warnings, w...)
	}

	socialScore := neutralScore
	if socialOK {
		var w []string
		socialScore, w = scoreSocial(social, cfg.Thresholds)
		warnings = append(warnings, w...)
	}

	overall := weights.Liquidity*liquidityScore +
		weights.HolderDistribution*holderScore +
		weights.ContractSecurity*contractScore +
		weights.SocialSignals*socialScore
	overall = math.Round(overall*10) / 10
	if overall < 1 {
		overall = 1
	} else if overall > 100 {
		overall = 100
	}

	assessment := &domain.RiskAssessment{
		CoinID:         in.CoinID,
		OverallScore:   overall,
		LiquidityScore: liquidityScore,
		HolderScore:    holderScore,
		ContractScore:  contractScore,
		SocialScore:    socialScore,
		Confidence:     confidence,
		Warnings:       warnings,
		CreatedAt:      time.Now(),
	}

	if err := e.repo.Save(assessment); err != nil {
		return nil, fmt.Errorf("failed to persist risk assessment for coin %d: %w", in.CoinID, err)
	}

	if err := e.cache.Set(ctx, cacheKey(in.CoinID), assessment, cacheTTL); err != nil {
		e.log.Warn().Err(err).Int64("coin_id", in.CoinID).Msg("Risk cache write failed")
	}

	return assessment, nil
}

func (e *Engine) logSourceFailure(source string, coinID int64, err error) {
	e.log.Warn().
		Err(&domain.DataUnavailableError{Source: source, Err: err}).
		Int64("coin_id", coinID).
		Str("source", source).
		Msg("Risk factor source failed, substituting neutral score")
}

// GetRiskHistory returns the most recent assessments for a coin, newest first
func (e *Engine) GetRiskHistory(coinID int64, limit int) ([]domain.RiskAssessment, error) {
	return e.repo.History(coinID, limit)
}
