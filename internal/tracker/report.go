package tracker

import (
	"context"
	"fmt"
	"math"
	"sort"

	"katabatic/internal/types"
)

// DefaultTrendDays is the look-back used when Trends is called with days <= 0.
const DefaultTrendDays = 14

// CalibrationBand aggregates outcomes for one 10-point confidence band.
type CalibrationBand struct {
	Band           string  `json:"band"`
	Lower          int     `json:"lower"`
	Count          int     `json:"count"`
	MeanConfidence float64 `json:"mean_confidence"`
	SuccessRate    float64 `json:"success_rate"`
}

// AccuracyReport summarizes prediction quality over entries with outcomes.
type AccuracyReport struct {
	TotalLogged        int               `json:"total_logged"`
	TotalPredictions   int               `json:"total_predictions"`
	CorrectPredictions int               `json:"correct_predictions"`
	FalsePositives     int               `json:"false_positives"`
	FalseNegatives     int               `json:"false_negatives"`
	Accuracy           float64           `json:"accuracy"`
	Calibration        []CalibrationBand `json:"calibration"`
}

// TrendPoint is the representative prediction for one date.
type TrendPoint struct {
	Date                 types.CalendarDate `json:"date"`
	PredictedProbability int                `json:"predicted_probability"`
	ActualSuccess        *bool              `json:"actual_success"`
	Accurate             *bool              `json:"accurate"`
}

// TrendSummary counts accuracy over trend dates that have outcomes.
type TrendSummary struct {
	Total        int     `json:"total"`
	Accurate     int     `json:"accurate"`
	AccuracyRate float64 `json:"accuracy_rate"`
}

// TrendReport is the per-date view of the last Days days.
type TrendReport struct {
	Days    int          `json:"days"`
	Points  []TrendPoint `json:"points"`
	Summary TrendSummary `json:"summary"`
}

// AccuracyReport computes accuracy counts and the calibration curve.
func (t *Tracker) AccuracyReport(ctx context.Context) AccuracyReport {
	entries := t.Entries(ctx)
	return buildAccuracyReport(entries)
}

func buildAccuracyReport(entries []types.PredictionEntry) AccuracyReport {
	report := AccuracyReport{
		TotalLogged: len(entries),
		Calibration: []CalibrationBand{},
	}

	type bandAcc struct {
		count     int
		confSum   int
		successes int
	}
	bands := make(map[int]*bandAcc)

	for _, e := range entries {
		accurate, known := e.Accurate()
		if !known {
			continue
		}
		report.TotalPredictions++
		predictedGood := e.Prediction.PredictsGood()
		switch {
		case accurate:
			report.CorrectPredictions++
		case predictedGood:
			report.FalsePositives++
		default:
			report.FalseNegatives++
		}

		lower := (e.Prediction.Probability / 10) * 10
		b, ok := bands[lower]
		if !ok {
			b = &bandAcc{}
			bands[lower] = b
		}
		b.count++
		b.confSum += e.Prediction.Probability
		if e.Outcome.Success {
			b.successes++
		}
	}

	if report.TotalPredictions > 0 {
		report.Accuracy = round1(float64(report.CorrectPredictions) / float64(report.TotalPredictions) * 100)
	}

	lowers := make([]int, 0, len(bands))
	for lower := range bands {
		lowers = append(lowers, lower)
	}
	sort.Ints(lowers)
	for _, lower := range lowers {
		b := bands[lower]
		report.Calibration = append(report.Calibration, CalibrationBand{
			Band:           fmt.Sprintf("%d-%d", lower, lower+9),
			Lower:          lower,
			Count:          b.count,
			MeanConfidence: round1(float64(b.confSum) / float64(b.count)),
			SuccessRate:    round1(float64(b.successes) / float64(b.count) * 100),
		})
	}
	return report
}

// Trends returns one point per date for target dates within the last days
// days (today included), using the most recently created entry per date.
func (t *Tracker) Trends(ctx context.Context, days int) TrendReport {
	if days <= 0 {
		days = DefaultTrendDays
	}
	cutoff := t.Today().AddDays(-(days - 1))

	latest := make(map[types.CalendarDate]types.PredictionEntry)
	for _, e := range t.Entries(ctx) {
		if e.TargetDate.Before(cutoff) {
			continue
		}
		cur, ok := latest[e.TargetDate]
		if !ok || e.CreatedAt.After(cur.CreatedAt) {
			latest[e.TargetDate] = e
		}
	}

	report := TrendReport{Days: days, Points: make([]TrendPoint, 0, len(latest))}
	for date, e := range latest {
		point := TrendPoint{Date: date, PredictedProbability: e.Prediction.Probability}
		if accurate, known := e.Accurate(); known {
			success := e.Outcome.Success
			point.ActualSuccess = &success
			point.Accurate = &accurate
			report.Summary.Total++
			if accurate {
				report.Summary.Accurate++
			}
		}
		report.Points = append(report.Points, point)
	}
	sort.Slice(report.Points, func(i, j int) bool {
		return report.Points[i].Date.Before(report.Points[j].Date)
	})

	if report.Summary.Total > 0 {
		report.Summary.AccuracyRate = round1(float64(report.Summary.Accurate) / float64(report.Summary.Total) * 100)
	}
	return report
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
