package types

import "time"

// GoodWindThresholdMph is the mean wind speed at or above which an observed
// dawn counts as a success.
const GoodWindThresholdMph = 10.0

// MetersPerSecondToMph converts wind speed units.
const MetersPerSecondToMph = 2.23694

// WeatherConditions is the ambient snapshot stored alongside a prediction.
type WeatherConditions struct {
	TemperatureC             float64 `json:"temperature"`
	PressureHPa              float64 `json:"pressure"`
	WindSpeedMS              float64 `json:"wind_speed"`
	WindDirectionDeg         float64 `json:"wind_direction"`
	CloudCover               float64 `json:"cloud_cover"`
	PrecipitationProbability float64 `json:"precipitation_probability"`
	Humidity                 float64 `json:"humidity"`
}

// ConditionsFromPoint builds a snapshot from a provider sample.
func ConditionsFromPoint(p WeatherPoint) *WeatherConditions {
	return &WeatherConditions{
		TemperatureC:             p.TemperatureC,
		PressureHPa:              p.PressureHPa,
		WindSpeedMS:              p.WindSpeedMS,
		WindDirectionDeg:         p.WindDirectionDeg,
		CloudCover:               p.CloudCover,
		PrecipitationProbability: p.PrecipitationProbability,
		Humidity:                 p.Humidity,
	}
}

// Outcome is what actually happened during the predicted window.
type Outcome struct {
	ObservedAt          time.Time `json:"observed_at" validate:"required"`
	ActualWindSpeed     float64   `json:"actual_wind_speed" validate:"gte=0"`
	ActualWindDirection float64   `json:"actual_wind_direction" validate:"gte=0,lte=360"`
	MinWindSpeed        float64   `json:"min_wind_speed" validate:"gte=0"`
	MaxWindSpeed        float64   `json:"max_wind_speed" validate:"gte=0"`
	SampleCount         int       `json:"sample_count" validate:"gte=0"`
	Success             bool      `json:"success"`
	Source              string    `json:"source" validate:"required"`
	Notes               string    `json:"notes,omitempty"`
}

// PredictionEntry is one persisted prediction with its optional outcome.
type PredictionEntry struct {
	ID         string             `json:"id"`
	CreatedAt  time.Time          `json:"timestamp"`
	TargetDate CalendarDate       `json:"target_date"`
	Prediction Prediction         `json:"prediction"`
	Conditions *WeatherConditions `json:"weather_conditions,omitempty"`
	Outcome    *Outcome           `json:"actual_outcome,omitempty"`
}

// HasOutcome reports whether an outcome has been attached.
func (e PredictionEntry) HasOutcome() bool {
	return e.Outcome != nil
}

// Accurate reports whether the prediction's good/bad call matched the
// outcome. The second result is false when no outcome is attached.
func (e PredictionEntry) Accurate() (accurate bool, known bool) {
	if e.Outcome == nil {
		return false, false
	}
	return e.Prediction.PredictsGood() == e.Outcome.Success, true
}
