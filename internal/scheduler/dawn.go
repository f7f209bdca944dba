package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"katabatic/internal/notify"
	"katabatic/internal/types"
)

// Analyzer scores a forecast pair and picks the next dawn date.
type Analyzer interface {
	Analyze(pair types.ForecastPair, overrides *types.CriteriaOverrides) (types.Prediction, error)
	TargetDate(now time.Time) types.CalendarDate
	Location() *time.Location
}

// PairFetcher retrieves both sites' hourly series for a date range.
type PairFetcher interface {
	FetchPair(ctx context.Context, from, to types.CalendarDate) (types.ForecastPair, error)
}

// NotificationScheduler enqueues a dawn alert.
type NotificationScheduler interface {
	Schedule(ctx context.Context, n notify.Notification) (string, error)
}

// DawnAnalysisConfig wires a DawnAnalysis.
type DawnAnalysisConfig struct {
	Fetcher  PairFetcher
	Analyzer Analyzer
	Tracker  PredictionStore
	// Notifier may be nil to disable alerts.
	Notifier NotificationScheduler
	// LeadTime is how long before the window start the alert fires.
	LeadTime time.Duration
	Metrics  MetricsRecorder
	Logger   *slog.Logger
}

// DawnResult reports one analysis run.
type DawnResult struct {
	TargetDate     types.CalendarDate `json:"target_date"`
	PredictionID   string             `json:"prediction_id"`
	Prediction     types.Prediction   `json:"prediction"`
	Stored         bool               `json:"stored"`
	NotificationID string             `json:"notification_id,omitempty"`
}

// DawnAnalysis fetches the next dawn's forecast, scores it, logs the
// prediction and schedules an alert for a "go".
type DawnAnalysis struct {
	fetcher  PairFetcher
	analyzer Analyzer
	tracker  PredictionStore
	notifier NotificationScheduler
	lead     time.Duration
	metrics  MetricsRecorder
	logger   *slog.Logger
}

// NewDawnAnalysis creates the job. Fetcher, Analyzer and Tracker are required.
func NewDawnAnalysis(cfg DawnAnalysisConfig) (*DawnAnalysis, error) {
	if cfg.Fetcher == nil || cfg.Analyzer == nil || cfg.Tracker == nil {
		return nil, fmt.Errorf("scheduler: dawn analysis requires fetcher, analyzer and tracker")
	}
	d := &DawnAnalysis{
		fetcher:  cfg.Fetcher,
		analyzer: cfg.Analyzer,
		tracker:  cfg.Tracker,
		notifier: cfg.Notifier,
		lead:     cfg.LeadTime,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
	if d.lead <= 0 {
		d.lead = notify.DefaultLeadTime
	}
	if d.metrics == nil {
		d.metrics = noopMetrics{}
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d, nil
}

// Run performs one analysis for the dawn following now.
//
// Re-runs on the same day are expected. An alert is only scheduled when the
// tracker actually stored the prediction (new date, or a change at or above
// the update threshold), so repeated runs do not repeat the alert.
func (d *DawnAnalysis) Run(ctx context.Context, now time.Time) (DawnResult, error) {
	start := time.Now()
	defer func() { d.metrics.RecordRunDuration(ctx, string(TaskDawnAnalysis), time.Since(start)) }()

	target := d.analyzer.TargetDate(now)
	res := DawnResult{TargetDate: target}

	pair, err := d.fetcher.FetchPair(ctx, target, target)
	if err != nil {
		return res, fmt.Errorf("fetching forecasts for %s: %w", target, err)
	}

	p, err := d.analyzer.Analyze(pair, nil)
	if err != nil {
		return res, fmt.Errorf("analyzing %s: %w", target, err)
	}
	res.Prediction = p

	prev, existed := d.tracker.EntryForDate(ctx, target)
	id, err := d.tracker.LogPrediction(ctx, target, p, types.ConditionsFromPoint(pair.Valley.Current))
	if err != nil {
		return res, fmt.Errorf("logging prediction for %s: %w", target, err)
	}
	res.PredictionID = id
	res.Stored = !existed
	if existed {
		if cur, err := d.tracker.Entry(ctx, id); err == nil {
			res.Stored = !cur.CreatedAt.Equal(prev.CreatedAt)
		}
	}

	d.metrics.RecordPrediction(ctx, p)
	d.logger.InfoContext(ctx, "dawn analysis complete",
		"target_date", target.String(),
		"prediction_id", id,
		"probability", p.Probability,
		"recommendation", string(p.Recommendation),
		"stored", res.Stored,
	)

	if p.Recommendation != types.RecommendGo || d.notifier == nil || !res.Stored {
		return res, nil
	}

	n, err := notify.BuildNotification(p, target, id, d.analyzer.Location(), d.lead)
	if err != nil {
		return res, fmt.Errorf("building notification: %w", err)
	}
	msgID, err := d.notifier.Schedule(ctx, n)
	if err != nil {
		return res, fmt.Errorf("scheduling notification for %s: %w", target, err)
	}
	res.NotificationID = msgID
	d.logger.InfoContext(ctx, "dawn alert scheduled",
		"target_date", target.String(),
		"trigger_at", n.TriggerAt.Format(time.RFC3339),
		"message_id", msgID,
	)
	return res, nil
}
