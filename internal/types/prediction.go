package types

// DataSourceNoData tags a factor that had no samples in its window.
const DataSourceNoData = "no_data"

// FactorName identifies one of the five scored factors.
type FactorName string

const (
	FactorPrecipitation FactorName = "precipitation"
	FactorSkyClarity    FactorName = "sky_clarity"
	FactorPressure      FactorName = "pressure_change"
	FactorTemperature   FactorName = "temperature_differential"
	FactorWavePattern   FactorName = "wave_pattern"
)

// PressureTrend classifies the sign of the pressure change.
type PressureTrend string

const (
	PressureRising  PressureTrend = "rising"
	PressureFalling PressureTrend = "falling"
	PressureStable  PressureTrend = "stable"
)

// WavePattern classifies downslope-flow consistency.
type WavePattern string

const (
	WavePositive WavePattern = "positive"
	WaveNeutral  WavePattern = "neutral"
	WaveNegative WavePattern = "negative"
)

// ConfidenceTier is the discrete confidence of a prediction.
type ConfidenceTier string

const (
	ConfidenceLow    ConfidenceTier = "low"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceHigh   ConfidenceTier = "high"
)

// Recommendation is the go/maybe/skip call for the dawn window.
type Recommendation string

const (
	RecommendGo    Recommendation = "go"
	RecommendMaybe Recommendation = "maybe"
	RecommendSkip  Recommendation = "skip"
)

// PrecipitationFactor is the worst-case rain chance across both windows.
type PrecipitationFactor struct {
	Meets          bool    `json:"meets"`
	MaxProbability float64 `json:"max_probability"`
	Threshold      float64 `json:"threshold"`
	Confidence     float64 `json:"confidence"`
	DataSource     string  `json:"data_source"`
}

// SkyClarityFactor is the share of clear hours in the clear-sky window.
type SkyClarityFactor struct {
	Meets               bool    `json:"meets"`
	ValleyCloudCover    float64 `json:"valley_cloud_cover"`
	MountainCloudCover  float64 `json:"mountain_cloud_cover"`
	ClearPeriodCoverage float64 `json:"clear_period_coverage"`
	Threshold           float64 `json:"threshold"`
	Confidence          float64 `json:"confidence"`
	DataSource          string  `json:"data_source"`
}

// PressureFactor is the valley pressure tendency over the next hours.
type PressureFactor struct {
	Meets      bool          `json:"meets"`
	Change     float64       `json:"change"`
	HourlyRate float64       `json:"hourly_rate"`
	Trend      PressureTrend `json:"trend"`
	Threshold  float64       `json:"threshold"`
	Confidence float64       `json:"confidence"`
	DataSource string        `json:"data_source"`
}

// TemperatureFactor is the valley-minus-mountain mean temperature.
type TemperatureFactor struct {
	Meets        bool    `json:"meets"`
	ValleyTemp   float64 `json:"valley_temp"`
	MountainTemp float64 `json:"mountain_temp"`
	Differential float64 `json:"differential"`
	Threshold    float64 `json:"threshold"`
	Confidence   float64 `json:"confidence"`
	DataSource   string  `json:"data_source"`
}

// WavePatternFactor describes downslope wind consistency and shear.
type WavePatternFactor struct {
	Meets                  bool        `json:"meets"`
	Pattern                WavePattern `json:"pattern"`
	DirectionalConsistency float64     `json:"directional_consistency"`
	ValleyWindSpeed        float64     `json:"valley_wind_speed"`
	MountainWindSpeed      float64     `json:"mountain_wind_speed"`
	WindShear              float64     `json:"wind_shear"`
	MixingHeight           float64     `json:"mixing_height"`
	Threshold              float64     `json:"threshold"`
	Confidence             float64     `json:"confidence"`
	DataSource             string      `json:"data_source"`
}

// Factors bundles the five factor results.
type Factors struct {
	Precipitation PrecipitationFactor `json:"precipitation"`
	SkyClarity    SkyClarityFactor    `json:"sky_clarity"`
	Pressure      PressureFactor      `json:"pressure_change"`
	Temperature   TemperatureFactor   `json:"temperature_differential"`
	WavePattern   WavePatternFactor   `json:"wave_pattern"`
}

// FactorScore is the uniform view of one factor used for aggregation.
type FactorScore struct {
	Name       FactorName
	Meets      bool
	Confidence float64
}

// Scores returns the factors in a fixed order.
func (f Factors) Scores() []FactorScore {
	return []FactorScore{
		{Name: FactorPrecipitation, Meets: f.Precipitation.Meets, Confidence: f.Precipitation.Confidence},
		{Name: FactorSkyClarity, Meets: f.SkyClarity.Meets, Confidence: f.SkyClarity.Confidence},
		{Name: FactorPressure, Meets: f.Pressure.Meets, Confidence: f.Pressure.Confidence},
		{Name: FactorTemperature, Meets: f.Temperature.Meets, Confidence: f.Temperature.Confidence},
		{Name: FactorWavePattern, Meets: f.WavePattern.Meets, Confidence: f.WavePattern.Confidence},
	}
}

// MetCount returns how many factors pass.
func (f Factors) MetCount() int {
	n := 0
	for _, s := range f.Scores() {
		if s.Meets {
			n++
		}
	}
	return n
}

// BestWindow is the suggested time slot inside the prediction window.
type BestWindow struct {
	Start      string `json:"start"`
	End        string `json:"end"`
	Confidence int    `json:"confidence"`
}

// Prediction is the immutable result of one analysis run.
type Prediction struct {
	Probability    int            `json:"probability" validate:"gte=0,lte=100"`
	ConfidenceTier ConfidenceTier `json:"confidence" validate:"required,oneof=low medium high"`
	Factors        Factors        `json:"factors"`
	Recommendation Recommendation `json:"recommendation" validate:"required,oneof=go maybe skip"`
	Explanation    string         `json:"explanation"`
	Details        []string       `json:"details,omitempty"`
	BestWindow     *BestWindow    `json:"best_time_window,omitempty"`
}

// PredictsGood reports whether the prediction lands on the "good" side of
// the accuracy axis.
func (p Prediction) PredictsGood() bool {
	return p.Probability >= 50
}
