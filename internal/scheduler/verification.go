package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"katabatic/internal/tracker"
	"katabatic/internal/types"
)

// DefaultVerificationLookback bounds how far back pending entries are
// verified; older ones are left without an outcome.
const DefaultVerificationLookback = 7

// Observer returns the observed hourly samples of a date inside a window.
type Observer interface {
	ObservedWindow(ctx context.Context, date types.CalendarDate, w types.TimeWindow) ([]types.WeatherPoint, error)
}

// OutcomeVerificationConfig wires an OutcomeVerification.
type OutcomeVerificationConfig struct {
	Observer Observer
	Tracker  PredictionStore
	// Window is the dawn window whose samples decide the outcome.
	Window   types.TimeWindow
	Location *time.Location
	// Source tags the derived outcomes (e.g. "open-meteo").
	Source string
	// LookbackDays of 0 means DefaultVerificationLookback.
	LookbackDays int
	Metrics      MetricsRecorder
	Logger       *slog.Logger
}

// VerificationResult counts what one run did.
type VerificationResult struct {
	Verified int `json:"verified"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// OutcomeVerification attaches observed outcomes to past predictions.
type OutcomeVerification struct {
	observer Observer
	tracker  PredictionStore
	window   types.TimeWindow
	endHour  int
	loc      *time.Location
	source   string
	lookback int
	metrics  MetricsRecorder
	logger   *slog.Logger
}

// NewOutcomeVerification creates the job. The window must parse.
func NewOutcomeVerification(cfg OutcomeVerificationConfig) (*OutcomeVerification, error) {
	if cfg.Observer == nil || cfg.Tracker == nil {
		return nil, fmt.Errorf("scheduler: outcome verification requires observer and tracker")
	}
	_, end, err := cfg.Window.Hours()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationTimeWindow, "verification window is invalid", err)
	}
	v := &OutcomeVerification{
		observer: cfg.Observer,
		tracker:  cfg.Tracker,
		window:   cfg.Window,
		endHour:  end,
		loc:      cfg.Location,
		source:   cfg.Source,
		lookback: cfg.LookbackDays,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
	if v.loc == nil {
		v.loc = time.UTC
	}
	if v.lookback <= 0 {
		v.lookback = DefaultVerificationLookback
	}
	if v.metrics == nil {
		v.metrics = noopMetrics{}
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	return v, nil
}

// Run verifies every pending entry whose window has fully passed at now.
// A failing entry does not stop the others; the failures are joined into the
// returned error.
func (v *OutcomeVerification) Run(ctx context.Context, now time.Time) (VerificationResult, error) {
	start := time.Now()
	defer func() { v.metrics.RecordRunDuration(ctx, string(TaskVerifyOutcomes), time.Since(start)) }()

	var res VerificationResult
	today := types.DateOf(now, v.loc)
	oldest := today.AddDays(-v.lookback)

	var outcomes []types.Outcome
	var errs []error
	for _, entry := range v.tracker.PendingOutcomes(ctx, today) {
		if entry.TargetDate.Before(oldest) || !v.windowPassed(entry.TargetDate, today, now) {
			res.Skipped++
			continue
		}

		outcome, err := v.verify(ctx, entry, now)
		switch {
		case types.HasCode(err, types.ErrCodeValidationNoSamples):
			v.logger.WarnContext(ctx, "no observations for prediction window",
				"prediction_id", entry.ID,
				"target_date", entry.TargetDate.String(),
			)
			res.Skipped++
		case err != nil:
			v.logger.ErrorContext(ctx, "outcome verification failed",
				"prediction_id", entry.ID,
				"target_date", entry.TargetDate.String(),
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", entry.ID, err))
			res.Failed++
		default:
			outcomes = append(outcomes, outcome)
			res.Verified++
		}
	}

	if len(outcomes) > 0 {
		report := v.tracker.AccuracyReport(ctx)
		for _, o := range outcomes {
			v.metrics.RecordAccuracy(ctx, report.Accuracy, o)
		}
		v.logger.InfoContext(ctx, "outcomes verified",
			"verified", res.Verified,
			"accuracy", report.Accuracy,
			"total_predictions", report.TotalPredictions,
		)
	}
	return res, errors.Join(errs...)
}

func (v *OutcomeVerification) verify(ctx context.Context, entry types.PredictionEntry, now time.Time) (types.Outcome, error) {
	samples, err := v.observer.ObservedWindow(ctx, entry.TargetDate, v.window)
	if err != nil {
		return types.Outcome{}, err
	}
	outcome, err := tracker.OutcomeFromSamples(samples, v.source, now)
	if err != nil {
		return types.Outcome{}, err
	}
	if err := v.tracker.UpdateOutcome(ctx, entry.ID, outcome); err != nil {
		return types.Outcome{}, err
	}
	return outcome, nil
}

// windowPassed reports whether the window on date is over at now. Past
// dates always are; today's only after the end hour.
func (v *OutcomeVerification) windowPassed(date, today types.CalendarDate, now time.Time) bool {
	if date.Before(today) {
		return true
	}
	return now.In(v.loc).Hour() > v.endHour
}
