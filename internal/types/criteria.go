package types

import (
	"fmt"
	"strconv"
	"strings"
)

// TimeWindow is a clock-time range in "HH:MM" form. Only the hour component
// takes part in matching; minutes are parsed and kept for display.
type TimeWindow struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// Hours returns the start and end hours of the window.
func (w TimeWindow) Hours() (start, end int, err error) {
	start, err = parseClockHour(w.Start)
	if err != nil {
		return 0, 0, fmt.Errorf("window start: %w", err)
	}
	end, err = parseClockHour(w.End)
	if err != nil {
		return 0, 0, fmt.Errorf("window end: %w", err)
	}
	return start, end, nil
}

// Wraps reports whether the window crosses midnight (e.g. 22:00-05:00).
func (w TimeWindow) Wraps() bool {
	start, end, err := w.Hours()
	return err == nil && start > end
}

// ContainsHour reports whether hour falls inside the window, inclusive at
// both ends. A window whose start hour is after its end hour wraps midnight.
func (w TimeWindow) ContainsHour(hour int) bool {
	start, end, err := w.Hours()
	if err != nil {
		return false
	}
	if start > end {
		return hour >= start || hour <= end
	}
	return hour >= start && hour <= end
}

func (w TimeWindow) String() string {
	return w.Start + "-" + w.End
}

func parseClockHour(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%q is not HH:MM", s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("%q has an invalid hour", s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%q has an invalid minute", s)
	}
	return hour, nil
}

// Criteria holds the thresholds every factor is judged against.
type Criteria struct {
	MaxPrecipitationProbability float64    `json:"max_precipitation_probability"`
	MinCloudCoverClearPeriod    float64    `json:"min_cloud_cover_clear_period"`
	MinPressureChange           float64    `json:"min_pressure_change"`
	MinTemperatureDifferential  float64    `json:"min_temperature_differential"`
	MinWavePatternScore         float64    `json:"min_wave_pattern_score"`
	ClearSkyWindow              TimeWindow `json:"clear_sky_window"`
	PredictionWindow            TimeWindow `json:"prediction_window"`
	MinimumConfidence           float64    `json:"minimum_confidence"`
}

// DefaultCriteria returns the production thresholds.
func DefaultCriteria() Criteria {
	return Criteria{
		MaxPrecipitationProbability: 20,
		MinCloudCoverClearPeriod:    70,
		MinPressureChange:           2.0,
		MinTemperatureDifferential:  2.0,
		MinWavePatternScore:         50,
		ClearSkyWindow:              TimeWindow{Start: "02:00", End: "06:00"},
		PredictionWindow:            TimeWindow{Start: "06:00", End: "08:00"},
		MinimumConfidence:           60,
	}
}

// Validate checks ranges and window syntax.
func (c Criteria) Validate() error {
	percentages := map[string]float64{
		"max_precipitation_probability": c.MaxPrecipitationProbability,
		"min_cloud_cover_clear_period":  c.MinCloudCoverClearPeriod,
		"min_wave_pattern_score":        c.MinWavePatternScore,
		"minimum_confidence":            c.MinimumConfidence,
	}
	for name, v := range percentages {
		if v < 0 || v > 100 {
			return NewAppErrorWithDetails(ErrCodeValidationThresholdRange,
				fmt.Sprintf("%s must be within 0-100", name), nil,
				map[string]any{"field": name, "value": v})
		}
	}
	if c.MinPressureChange < 0 {
		return NewAppError(ErrCodeValidationThresholdRange, "min_pressure_change must not be negative", nil)
	}
	if _, _, err := c.ClearSkyWindow.Hours(); err != nil {
		return NewAppError(ErrCodeValidationTimeWindow, "clear_sky_window is invalid", err)
	}
	if _, _, err := c.PredictionWindow.Hours(); err != nil {
		return NewAppError(ErrCodeValidationTimeWindow, "prediction_window is invalid", err)
	}
	return nil
}

// CriteriaOverrides is a partial Criteria. Nil fields keep the base value.
type CriteriaOverrides struct {
	MaxPrecipitationProbability *float64    `json:"max_precipitation_probability,omitempty" yaml:"max_precipitation_probability"`
	MinCloudCoverClearPeriod    *float64    `json:"min_cloud_cover_clear_period,omitempty" yaml:"min_cloud_cover_clear_period"`
	MinPressureChange           *float64    `json:"min_pressure_change,omitempty" yaml:"min_pressure_change"`
	MinTemperatureDifferential  *float64    `json:"min_temperature_differential,omitempty" yaml:"min_temperature_differential"`
	MinWavePatternScore         *float64    `json:"min_wave_pattern_score,omitempty" yaml:"min_wave_pattern_score"`
	ClearSkyWindow              *TimeWindow `json:"clear_sky_window,omitempty" yaml:"clear_sky_window"`
	PredictionWindow            *TimeWindow `json:"prediction_window,omitempty" yaml:"prediction_window"`
	MinimumConfidence           *float64    `json:"minimum_confidence,omitempty" yaml:"minimum_confidence"`
}

// Merge returns c with every non-nil override applied.
func (c Criteria) Merge(o *CriteriaOverrides) Criteria {
	if o == nil {
		return c
	}
	if o.MaxPrecipitationProbability != nil {
		c.MaxPrecipitationProbability = *o.MaxPrecipitationProbability
	}
	if o.MinCloudCoverClearPeriod != nil {
		c.MinCloudCoverClearPeriod = *o.MinCloudCoverClearPeriod
	}
	if o.MinPressureChange != nil {
		c.MinPressureChange = *o.MinPressureChange
	}
	if o.MinTemperatureDifferential != nil {
		c.MinTemperatureDifferential = *o.MinTemperatureDifferential
	}
	if o.MinWavePatternScore != nil {
		c.MinWavePatternScore = *o.MinWavePatternScore
	}
	if o.ClearSkyWindow != nil {
		c.ClearSkyWindow = *o.ClearSkyWindow
	}
	if o.PredictionWindow != nil {
		c.PredictionWindow = *o.PredictionWindow
	}
	if o.MinimumConfidence != nil {
		c.MinimumConfidence = *o.MinimumConfidence
	}
	return c
}
