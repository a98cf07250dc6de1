package processors

import (
	"context"

	"github.com/coinscope/coinscope/internal/jobs"
	"github.com/coinscope/coinscope/internal/modules/risk"
	"github.com/coinscope/coinscope/internal/queue"
)

// handlerWeights are the weights the assessment job has always run with.
// They differ from the engine's own defaults; the job keeps passing its
// historical set so scheduled scores stay comparable over time.
var handlerWeights = risk.Weights{
	Liquidity:          0.30,
	HolderDistribution: 0.25,
	ContractSecurity:   0.25,
	SocialSignals:      0.20,
}

// RiskDeps contains the dependencies of the risk-assessment queue handlers.
type RiskDeps struct {
	Engine *risk.Engine
}

// RegisterRiskHandlers binds the risk-assessment queue job names.
func RegisterRiskHandlers(r *Registry, deps *RiskDeps) {
	r.Register(jobs.JobAssessCoinRisk, deps.handleAssessCoinRisk)
}

// handleAssessCoinRisk delegates to the engine, which persists and caches
// the assessment itself.
func (d *RiskDeps) handleAssessCoinRisk(ctx context.Context, job *queue.Job, progress ProgressFunc) (any, error) {
	var p jobs.RiskAssessPayload
	if err := job.DecodePayload(&p); err != nil {
		return nil, err
	}
	progress(ProgressFetched)

	weights := handlerWeights
	assessment, err := d.Engine.AssessRisk(ctx, risk.AssessInput{
		CoinID:         p.CoinID,
		Address:        p.Address,
		ForceRefresh:   p.ForceRefresh,
		WeightOverride: &weights,
	})
	if err != nil {
		return nil, err
	}
	progress(ProgressDone)

	return map[string]any{
		"coin_id":       assessment.CoinID,
		"overall_score": assessment.OverallScore,
		"confidence":    assessment.Confidence,
		"warnings":      len(assessment.Warnings),
	}, nil
}
