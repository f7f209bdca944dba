package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"katabatic/internal/core"
	"katabatic/internal/tracker"
	"katabatic/internal/types"
)

// maxTrendDays bounds the trends look-back.
const maxTrendDays = 365

// PredictionTracker is the tracker contract the handler depends on.
type PredictionTracker interface {
	LogPrediction(ctx context.Context, target types.CalendarDate, p types.Prediction, conditions *types.WeatherConditions) (string, error)
	UpdateOutcome(ctx context.Context, id string, outcome types.Outcome) error
	Entries(ctx context.Context) []types.PredictionEntry
	Entry(ctx context.Context, id string) (types.PredictionEntry, error)
	AccuracyReport(ctx context.Context) tracker.AccuracyReport
	Trends(ctx context.Context, days int) tracker.TrendReport
	Deduplicate(ctx context.Context) (tracker.DedupResult, error)
	Clear(ctx context.Context) error
}

// PredictionHandler maps HTTP requests to tracker operations.
type PredictionHandler struct {
	tracker   PredictionTracker
	validator *core.Validator
	logger    *slog.Logger
}

// NewPredictionHandler creates a PredictionHandler.
func NewPredictionHandler(t PredictionTracker, val *core.Validator, logger *slog.Logger) *PredictionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PredictionHandler{tracker: t, validator: val, logger: logger}
}

// RegisterRoutes mounts the tracking endpoints.
func (h *PredictionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/predictions", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleLog)
		r.Delete("/", h.HandleClear)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}/outcome", h.HandleUpdateOutcome)
	})
	r.Get("/accuracy", h.HandleAccuracy)
	r.Get("/trends", h.HandleTrends)
	r.Post("/maintenance/deduplicate", h.HandleDeduplicate)
}

// LogPredictionRequest is the body of POST /v1/predictions.
type LogPredictionRequest struct {
	TargetDate types.CalendarDate       `json:"target_date"`
	Prediction types.Prediction         `json:"prediction" validate:"required"`
	Conditions *types.WeatherConditions `json:"weather_conditions,omitempty"`
}

// LogPredictionResponse carries the stored entry's id.
type LogPredictionResponse struct {
	ID string `json:"id"`
}

// HandleLog handles POST /v1/predictions. A same-date prediction within the
// update threshold returns the existing id unchanged.
func (h *PredictionHandler) HandleLog(w http.ResponseWriter, r *http.Request) {
	var req LogPredictionRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.TargetDate.IsZero() {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidDate, "target_date is required", nil))
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	id, err := h.tracker.LogPrediction(r.Context(), req.TargetDate, req.Prediction, req.Conditions)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusCreated, LogPredictionResponse{ID: id})
}

// HandleUpdateOutcome handles PUT /v1/predictions/{id}/outcome.
func (h *PredictionHandler) HandleUpdateOutcome(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var outcome types.Outcome
	if err := core.DecodeJSON(w, r, &outcome); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(outcome); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.tracker.UpdateOutcome(r.Context(), id, outcome); err != nil {
		core.Error(w, r, err)
		return
	}
	types.LoggerFromContext(r.Context(), h.logger).Info("outcome recorded",
		"id", id, "success", outcome.Success, "source", outcome.Source)
	core.NoContent(w)
}

// HandleList handles GET /v1/predictions.
func (h *PredictionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	entries := h.tracker.Entries(r.Context())
	if entries == nil {
		entries = []types.PredictionEntry{}
	}
	core.Data(w, r, http.StatusOK, entries)
}

// HandleGet handles GET /v1/predictions/{id}.
func (h *PredictionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	entry, err := h.tracker.Entry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, entry)
}

// HandleAccuracy handles GET /v1/accuracy.
func (h *PredictionHandler) HandleAccuracy(w http.ResponseWriter, r *http.Request) {
	core.Data(w, r, http.StatusOK, h.tracker.AccuracyReport(r.Context()))
}

// HandleTrends handles GET /v1/trends?days=N (default 14).
func (h *PredictionHandler) HandleTrends(w http.ResponseWriter, r *http.Request) {
	days := tracker.DefaultTrendDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxTrendDays {
			core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeValidationThresholdRange,
				"days must be an integer between 1 and 365", err, map[string]any{"days": raw}))
			return
		}
		days = n
	}
	core.Data(w, r, http.StatusOK, h.tracker.Trends(r.Context(), days))
}

// HandleDeduplicate handles POST /v1/maintenance/deduplicate.
func (h *PredictionHandler) HandleDeduplicate(w http.ResponseWriter, r *http.Request) {
	res, err := h.tracker.Deduplicate(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, res)
}

// HandleClear handles DELETE /v1/predictions.
func (h *PredictionHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.Clear(r.Context()); err != nil {
		core.Error(w, r, err)
		return
	}
	types.LoggerFromContext(r.Context(), h.logger).Warn("prediction history cleared")
	core.NoContent(w)
}
