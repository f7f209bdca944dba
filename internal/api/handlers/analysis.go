// Package handlers contains the HTTP handlers for the katabatic API.
//
// This file covers analysis:
//   - Ad-hoc analysis of a supplied forecast pair (POST /v1/analyze)
//   - Live outlook for the next dawn from the weather provider (GET /v1/outlook)
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"katabatic/internal/core"
	"katabatic/internal/types"
)

// Analyzer is the scoring contract the handler depends on.
type Analyzer interface {
	Analyze(pair types.ForecastPair, overrides *types.CriteriaOverrides) (types.Prediction, error)
	TargetDate(now time.Time) types.CalendarDate
}

// PairFetcher retrieves the live forecast pair for a date range.
type PairFetcher interface {
	FetchPair(ctx context.Context, from, to types.CalendarDate) (types.ForecastPair, error)
}

// AnalysisHandler serves analysis endpoints.
type AnalysisHandler struct {
	analyzer  Analyzer
	fetcher   PairFetcher
	validator *core.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewAnalysisHandler creates an AnalysisHandler. fetcher may be nil, in which
// case the outlook route is not mounted.
func NewAnalysisHandler(a Analyzer, fetcher PairFetcher, val *core.Validator, logger *slog.Logger) *AnalysisHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisHandler{
		analyzer:  a,
		fetcher:   fetcher,
		validator: val,
		logger:    logger,
		now:       time.Now,
	}
}

// RegisterRoutes mounts the analysis endpoints.
func (h *AnalysisHandler) RegisterRoutes(r chi.Router) {
	r.Post("/analyze", h.HandleAnalyze)
	if h.fetcher != nil {
		r.Get("/outlook", h.HandleOutlook)
	}
}

// AnalyzeRequest is the body of POST /v1/analyze.
type AnalyzeRequest struct {
	Valley   types.LocationSeries     `json:"valley" validate:"required"`
	Mountain types.LocationSeries     `json:"mountain" validate:"required"`
	Criteria *types.CriteriaOverrides `json:"criteria,omitempty"`
}

// HandleAnalyze handles POST /v1/analyze. The analysis is pure; nothing is
// logged to the tracker.
func (h *AnalysisHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	req.Valley.Role = types.SiteValley
	req.Mountain.Role = types.SiteMountain
	p, err := h.analyzer.Analyze(types.ForecastPair{Valley: req.Valley, Mountain: req.Mountain}, req.Criteria)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, p)
}

// OutlookResponse is the body of GET /v1/outlook.
type OutlookResponse struct {
	TargetDate types.CalendarDate       `json:"target_date"`
	Prediction types.Prediction         `json:"prediction"`
	Conditions *types.WeatherConditions `json:"weather_conditions,omitempty"`
}

// HandleOutlook handles GET /v1/outlook: fetch both sites for the next dawn's
// date and score it. Only that date is fetched so the window hours match a
// single morning.
func (h *AnalysisHandler) HandleOutlook(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	target := h.analyzer.TargetDate(now)

	pair, err := h.fetcher.FetchPair(r.Context(), target, target)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	p, err := h.analyzer.Analyze(pair, nil)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	types.LoggerFromContext(r.Context(), h.logger).Info("outlook computed",
		"target_date", target.String(),
		"probability", p.Probability,
		"recommendation", string(p.Recommendation),
	)
	core.Data(w, r, http.StatusOK, OutlookResponse{
		TargetDate: target,
		Prediction: p,
		Conditions: types.ConditionsFromPoint(pair.Valley.Current),
	})
}
