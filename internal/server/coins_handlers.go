package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/coinscope/coinscope/internal/domain"
	"github.com/coinscope/coinscope/internal/jobs/scheduler"
	"github.com/coinscope/coinscope/internal/modules/risk"
	"github.com/coinscope/coinscope/internal/queue"
)

// CoinHandlers serves the per-coin job triggers and the risk configuration.
type CoinHandlers struct {
	scheduler *scheduler.Scheduler
	engine    *risk.Engine
	log       zerolog.Logger
}

func NewCoinHandlers(sched *scheduler.Scheduler, engine *risk.Engine, log zerolog.Logger) *CoinHandlers {
	return &CoinHandlers{
		scheduler: sched,
		engine:    engine,
		log:       log.With().Str("handlers", "coins").Logger(),
	}
}

func coinID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "coinID"), 10, 64)
}

func delayParam(r *http.Request) time.Duration {
	if v := r.URL.Query().Get("delay_seconds"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return 0
}

type scheduleFunc func(r *http.Request, id int64) (*queue.Job, error)

func (h *CoinHandlers) schedule(w http.ResponseWriter, r *http.Request, fn scheduleFunc) {
	id, err := coinID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coin_id", "coin id must be an integer")
		return
	}

	job, err := fn(r, id)
	if err != nil {
		if domain.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "coin_not_found", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "schedule_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "job_id": job.ID})
}

// RefreshPrice schedules a one-off price update for the coin.
func (h *CoinHandlers) RefreshPrice(w http.ResponseWriter, r *http.Request) {
	h.schedule(w, r, func(r *http.Request, id int64) (*queue.Job, error) {
		return h.scheduler.ScheduleCoinPriceUpdate(r.Context(), id, delayParam(r))
	})
}

// RefreshSocial schedules a one-off social scrape for the coin.
func (h *CoinHandlers) RefreshSocial(w http.ResponseWriter, r *http.Request) {
	h.schedule(w, r, func(r *http.Request, id int64) (*queue.Job, error) {
		return h.scheduler.ScheduleCoinSocialScraping(r.Context(), id, delayParam(r))
	})
}

// AssessRisk schedules a one-off risk assessment for the coin.
func (h *CoinHandlers) AssessRisk(w http.ResponseWriter, r *http.Request) {
	h.schedule(w, r, func(r *http.Request, id int64) (*queue.Job, error) {
		return h.scheduler.ScheduleCoinRiskAssessment(r.Context(), id, delayParam(r))
	})
}

// RiskHistory returns the most recent assessments for the coin.
func (h *CoinHandlers) RiskHistory(w http.ResponseWriter, r *http.Request) {
	id, err := coinID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coin_id", "coin id must be an integer")
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	history, err := h.engine.GetRiskHistory(id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "history_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// GetRiskConfig returns the live engine configuration.
func (h *CoinHandlers) GetRiskConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Config())
}

// UpdateRiskConfig merges a partial configuration update. An invalid weight
// sum is rejected and the previous configuration stays in effect.
func (h *CoinHandlers) UpdateRiskConfig(w http.ResponseWriter, r *http.Request) {
	var patch risk.ConfigPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.engine.UpdateConfig(patch); err != nil {
		var cfgErr *domain.ConfigValidationError
		if errors.As(err, &cfgErr) {
			writeError(w, http.StatusUnprocessableEntity, "invalid_config", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "update_failed", err.Error())
		return
	}

	h.log.Info().Msg("Risk configuration updated")
	writeJSON(w, http.StatusOK, h.engine.Config())
}
