// Package scheduler implements the scheduled katabatic jobs: the pre-dawn
// analysis run and the post-dawn outcome verification.
//
// Both services take an explicit now so that runs are deterministic in tests
// and can be backfilled through Payload.ReferenceTime.
package scheduler

import (
	"context"
	"time"

	"katabatic/internal/tracker"
	"katabatic/internal/types"
)

// TaskType identifies which job a scheduled invocation runs.
type TaskType string

const (
	TaskDawnAnalysis   TaskType = "dawn_analysis"
	TaskVerifyOutcomes TaskType = "verify_outcomes"
	TaskDeduplicate    TaskType = "deduplicate"
)

// Payload is the JSON event sent by the schedule rule:
//
//	{
//	  "task": "dawn_analysis",
//	  "reference_time": "2026-10-18T09:00:00Z"  // optional
//	}
type Payload struct {
	Task TaskType `json:"task"`
	// ReferenceTime overrides now for manual runs and backfills.
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}

// PredictionStore is the subset of the tracker both jobs use.
type PredictionStore interface {
	LogPrediction(ctx context.Context, target types.CalendarDate, p types.Prediction, conditions *types.WeatherConditions) (string, error)
	UpdateOutcome(ctx context.Context, id string, outcome types.Outcome) error
	Entry(ctx context.Context, id string) (types.PredictionEntry, error)
	EntryForDate(ctx context.Context, date types.CalendarDate) (types.PredictionEntry, bool)
	PendingOutcomes(ctx context.Context, through types.CalendarDate) []types.PredictionEntry
	AccuracyReport(ctx context.Context) tracker.AccuracyReport
}

// MetricsRecorder publishes job metrics. Implementations must not fail the
// job; errors are theirs to log.
type MetricsRecorder interface {
	RecordPrediction(ctx context.Context, p types.Prediction)
	RecordAccuracy(ctx context.Context, accuracy float64, outcome types.Outcome)
	RecordRunDuration(ctx context.Context, job string, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordPrediction(context.Context, types.Prediction)       {}
func (noopMetrics) RecordAccuracy(context.Context, float64, types.Outcome)   {}
func (noopMetrics) RecordRunDuration(context.Context, string, time.Duration) {}
