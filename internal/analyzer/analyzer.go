// Package analyzer turns a valley/mountain forecast pair into a katabatic
// wind prediction for the dawn window.
//
// Five independent factors (precipitation, sky clarity, pressure trend,
// temperature differential, wave pattern) are scored from the forecast,
// combined into a weighted probability with co-occurrence bonuses, and
// classified into a confidence tier and a go/maybe/skip recommendation.
//
// Analysis is a pure function of its inputs: the same pair and criteria
// always yield the same Prediction.
package analyzer

import (
	"log/slog"
	"time"

	"katabatic/internal/types"
)

// DefaultTimeZone is the site time zone used for window matching.
const DefaultTimeZone = "America/Denver"

// Analyzer scores forecast pairs against a base set of criteria.
type Analyzer struct {
	base     types.Criteria
	location *time.Location
	logger   *slog.Logger
}

// Config configures an Analyzer.
type Config struct {
	// Criteria is the base threshold set. Zero value means DefaultCriteria.
	Criteria *types.Criteria
	// Location is the zone whose local hours the windows refer to.
	Location *time.Location
	Logger   *slog.Logger
}

// New creates an Analyzer. The base criteria are validated once here.
func New(cfg Config) (*Analyzer, error) {
	base := types.DefaultCriteria()
	if cfg.Criteria != nil {
		base = *cfg.Criteria
	}
	if err := base.Validate(); err != nil {
		return nil, err
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{base: base, location: loc, logger: logger}, nil
}

// Criteria returns the base criteria.
func (a *Analyzer) Criteria() types.Criteria {
	return a.base
}

// Location returns the zone used for window matching.
func (a *Analyzer) Location() *time.Location {
	return a.location
}

// Analyze scores the pair with overrides merged over the base criteria.
// The only error is a validation error for an invalid merged criteria set;
// missing forecast data degrades individual factors instead.
func (a *Analyzer) Analyze(pair types.ForecastPair, overrides *types.CriteriaOverrides) (types.Prediction, error) {
	c := a.base.Merge(overrides)
	if err := c.Validate(); err != nil {
		return types.Prediction{}, err
	}

	factors := types.Factors{
		Precipitation: analyzePrecipitation(pair, c, a.location),
		SkyClarity:    analyzeSkyClarity(pair, c, a.location),
		Pressure:      analyzePressure(pair, c),
		Temperature:   analyzeTemperature(pair, c, a.location),
		WavePattern:   analyzeWavePattern(pair, c, a.location),
	}

	p := types.Prediction{
		Probability:    Probability(factors),
		ConfidenceTier: Tier(factors),
		Factors:        factors,
	}
	p.Recommendation = Recommend(p.Probability, p.ConfidenceTier)
	if p.Recommendation != types.RecommendSkip {
		p.BestWindow = &types.BestWindow{
			Start:      c.PredictionWindow.Start,
			End:        c.PredictionWindow.End,
			Confidence: p.Probability,
		}
	}
	p.Explanation, p.Details = explain(p, c)

	a.logger.Debug("katabatic analysis complete",
		"probability", p.Probability,
		"confidence", string(p.ConfidenceTier),
		"recommendation", string(p.Recommendation),
		"factors_met", factors.MetCount(),
	)
	return p, nil
}

// TargetDate is the calendar date of the next dawn window at now: today
// while the prediction window has not ended locally, tomorrow after.
func (a *Analyzer) TargetDate(now time.Time) types.CalendarDate {
	today := types.DateOf(now, a.location)
	_, end, err := a.base.PredictionWindow.Hours()
	if err != nil || a.base.PredictionWindow.Wraps() {
		return today.AddDays(1)
	}
	if now.In(a.location).Hour() <= end {
		return today
	}
	return today.AddDays(1)
}
