package analyzer

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"katabatic/internal/types"
)

// ============================================================
// Helpers
// ============================================================

var testDay = time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

// series builds 24 hourly points starting at midnight UTC.
func series(name string, gen func(hour int) types.WeatherPoint) types.LocationSeries {
	s := types.LocationSeries{Name: name, Source: "test"}
	for h := 0; h < 24; h++ {
		p := gen(h)
		p.Timestamp = testDay.Add(time.Duration(h) * time.Hour).UnixMilli()
		s.Hourly = append(s.Hourly, p)
	}
	s.Current = s.Hourly[0]
	return s
}

func goodPair() types.ForecastPair {
	return types.ForecastPair{
		Valley: series("Morrison", func(h int) types.WeatherPoint {
			return types.WeatherPoint{
				TemperatureC:             10,
				PressureHPa:              1015 + 0.5*float64(h),
				PrecipitationProbability: 5,
				CloudCover:               10,
				WindSpeedMS:              3,
				WindDirectionDeg:         300,
			}
		}),
		Mountain: series("Evergreen", func(h int) types.WeatherPoint {
			return types.WeatherPoint{
				TemperatureC: 5,
				PressureHPa:  780,
				CloudCover:   10,
				WindSpeedMS:  4,
			}
		}),
	}
}

func badPair() types.ForecastPair {
	return types.ForecastPair{
		Valley: series("Morrison", func(h int) types.WeatherPoint {
			return types.WeatherPoint{
				TemperatureC:             2,
				PressureHPa:              1015,
				PrecipitationProbability: 80,
				CloudCover:               90,
				WindSpeedMS:              10,
				WindDirectionDeg:         180,
			}
		}),
		Mountain: series("Evergreen", func(h int) types.WeatherPoint {
			return types.WeatherPoint{TemperatureC: 5, CloudCover: 90, WindSpeedMS: 2}
		}),
	}
}

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := New(Config{Location: time.UTC})
	require.NoError(t, err)
	return a
}

func f64(v float64) *float64 { return &v }

// ============================================================
// Analyze
// ============================================================

func TestAnalyze_GoodConditions(t *testing.T) {
	a := newTestAnalyzer(t)

	p, err := a.Analyze(goodPair(), nil)
	require.NoError(t, err)

	f := p.Factors
	assert.True(t, f.Precipitation.Meets)
	assert.InDelta(t, 87.5, f.Precipitation.Confidence, 1e-9)

	assert.True(t, f.SkyClarity.Meets)
	assert.InDelta(t, 100, f.SkyClarity.ClearPeriodCoverage, 1e-9)
	assert.InDelta(t, 100, f.SkyClarity.Confidence, 1e-9)

	assert.True(t, f.Pressure.Meets)
	assert.Equal(t, types.PressureRising, f.Pressure.Trend)
	assert.InDelta(t, 3.0, f.Pressure.Change, 1e-9)
	assert.InDelta(t, 0.5, f.Pressure.HourlyRate, 1e-9)
	assert.InDelta(t, 95, f.Pressure.Confidence, 1e-9)

	assert.True(t, f.Temperature.Meets)
	assert.InDelta(t, 5, f.Temperature.Differential, 1e-9)
	assert.InDelta(t, 90, f.Temperature.Confidence, 1e-9)

	assert.True(t, f.WavePattern.Meets)
	assert.Equal(t, types.WavePositive, f.WavePattern.Pattern)
	assert.InDelta(t, 1.0, f.WavePattern.DirectionalConsistency, 1e-9)
	assert.InDelta(t, 600, f.WavePattern.MixingHeight, 1e-9)

	assert.Equal(t, 100, p.Probability)
	assert.Equal(t, types.ConfidenceHigh, p.ConfidenceTier)
	assert.Equal(t, types.RecommendGo, p.Recommendation)
	require.NotNil(t, p.BestWindow)
	assert.Equal(t, "06:00", p.BestWindow.Start)
	assert.Equal(t, "08:00", p.BestWindow.End)
	assert.NotEmpty(t, p.Explanation)
	assert.Len(t, p.Details, 5)
}

func TestAnalyze_BadConditions(t *testing.T) {
	a := newTestAnalyzer(t)

	p, err := a.Analyze(badPair(), nil)
	require.NoError(t, err)

	assert.False(t, p.Factors.Precipitation.Meets)
	assert.Zero(t, p.Factors.Precipitation.Confidence)
	assert.Equal(t, types.PressureStable, p.Factors.Pressure.Trend)
	assert.Equal(t, types.WaveNegative, p.Factors.WavePattern.Pattern)
	assert.Zero(t, p.Probability)
	assert.Equal(t, types.ConfidenceLow, p.ConfidenceTier)
	assert.Equal(t, types.RecommendSkip, p.Recommendation)
	assert.Nil(t, p.BestWindow)
}

func TestAnalyze_EmptyForecastDegradesGracefully(t *testing.T) {
	a := newTestAnalyzer(t)

	p, err := a.Analyze(types.ForecastPair{}, nil)
	require.NoError(t, err)

	for _, s := range p.Factors.Scores() {
		assert.False(t, s.Meets, s.Name)
		assert.Zero(t, s.Confidence, s.Name)
	}
	assert.Equal(t, types.DataSourceNoData, p.Factors.Precipitation.DataSource)
	assert.Equal(t, types.DataSourceNoData, p.Factors.SkyClarity.DataSource)
	assert.Equal(t, types.DataSourceNoData, p.Factors.Pressure.DataSource)
	assert.Equal(t, types.DataSourceNoData, p.Factors.Temperature.DataSource)
	assert.Equal(t, types.DataSourceNoData, p.Factors.WavePattern.DataSource)
	assert.Zero(t, p.Probability)
	assert.Equal(t, types.RecommendSkip, p.Recommendation)
}

func TestAnalyze_Idempotent(t *testing.T) {
	a := newTestAnalyzer(t)
	pair := goodPair()

	first, err := a.Analyze(pair, nil)
	require.NoError(t, err)
	second, err := a.Analyze(pair, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAnalyze_OverridesMergeOverDefaults(t *testing.T) {
	a := newTestAnalyzer(t)

	p, err := a.Analyze(badPair(), &types.CriteriaOverrides{MaxPrecipitationProbability: f64(90)})
	require.NoError(t, err)

	assert.True(t, p.Factors.Precipitation.Meets)
	assert.InDelta(t, 100-80.0/90.0*50, p.Factors.Precipitation.Confidence, 1e-9)
	// Untouched fields keep their defaults.
	assert.Equal(t, types.DefaultCriteria().MinCloudCoverClearPeriod, p.Factors.SkyClarity.Threshold)
	assert.Equal(t, a.Criteria(), types.DefaultCriteria())
}

func TestAnalyze_InvalidOverride(t *testing.T) {
	a := newTestAnalyzer(t)

	_, err := a.Analyze(goodPair(), &types.CriteriaOverrides{
		PredictionWindow: &types.TimeWindow{Start: "25:00", End: "08:00"},
	})
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrCodeValidationTimeWindow))
}

func TestNew_RejectsInvalidBaseCriteria(t *testing.T) {
	c := types.DefaultCriteria()
	c.MaxPrecipitationProbability = 120
	_, err := New(Config{Criteria: &c})
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrCodeValidationThresholdRange))
}

// ============================================================
// Individual factors
// ============================================================

func TestPressure_SinglePointIsDegenerate(t *testing.T) {
	pair := types.ForecastPair{Valley: types.LocationSeries{
		Hourly: []types.WeatherPoint{{Timestamp: testDay.UnixMilli(), PressureHPa: 1010}},
	}}

	f := analyzePressure(pair, types.DefaultCriteria())
	assert.Equal(t, types.PressureStable, f.Trend)
	assert.Zero(t, f.Change)
	assert.Zero(t, f.Confidence)
	assert.False(t, f.Meets)
}

func TestPressure_ShortSeriesUsesLastPoint(t *testing.T) {
	pair := types.ForecastPair{Valley: types.LocationSeries{Hourly: []types.WeatherPoint{
		{Timestamp: testDay.UnixMilli(), PressureHPa: 1010},
		{Timestamp: testDay.Add(time.Hour).UnixMilli(), PressureHPa: 1009},
		{Timestamp: testDay.Add(2 * time.Hour).UnixMilli(), PressureHPa: 1007.5},
	}}}

	f := analyzePressure(pair, types.DefaultCriteria())
	assert.InDelta(t, -2.5, f.Change, 1e-9)
	assert.InDelta(t, -1.25, f.HourlyRate, 1e-9)
	assert.Equal(t, types.PressureFalling, f.Trend)
	assert.True(t, f.Meets)
	assert.InDelta(t, 90, f.Confidence, 1e-9)
}

func TestPressure_DeadBand(t *testing.T) {
	pair := types.ForecastPair{Valley: types.LocationSeries{Hourly: []types.WeatherPoint{
		{Timestamp: testDay.UnixMilli(), PressureHPa: 1010},
		{Timestamp: testDay.Add(time.Hour).UnixMilli(), PressureHPa: 1011},
	}}}

	f := analyzePressure(pair, types.DefaultCriteria())
	assert.Equal(t, types.PressureStable, f.Trend)
	assert.False(t, f.Meets)
	assert.InDelta(t, 20, f.Confidence, 1e-9)
}

func TestPrecipitation_ThresholdBoundaryUsesMeetsBranch(t *testing.T) {
	c := types.DefaultCriteria()
	pair := types.ForecastPair{Valley: series("v", func(int) types.WeatherPoint {
		return types.WeatherPoint{PrecipitationProbability: c.MaxPrecipitationProbability}
	})}

	f := analyzePrecipitation(pair, c, time.UTC)
	assert.True(t, f.Meets)
	assert.InDelta(t, 50, f.Confidence, 1e-9)

	// Just past the threshold the failing branch starts from the same value.
	pair = types.ForecastPair{Valley: series("v", func(int) types.WeatherPoint {
		return types.WeatherPoint{PrecipitationProbability: c.MaxPrecipitationProbability + 0.001}
	})}
	f = analyzePrecipitation(pair, c, time.UTC)
	assert.False(t, f.Meets)
	assert.InDelta(t, 50, f.Confidence, 0.01)
}

func TestPrecipitation_ZeroThreshold(t *testing.T) {
	c := types.DefaultCriteria()
	c.MaxPrecipitationProbability = 0
	pair := types.ForecastPair{Valley: series("v", func(int) types.WeatherPoint { return types.WeatherPoint{} })}

	f := analyzePrecipitation(pair, c, time.UTC)
	assert.True(t, f.Meets)
	assert.Equal(t, 100.0, f.Confidence)
}

func TestSkyClarity_OneSiteMissing(t *testing.T) {
	pair := types.ForecastPair{
		Valley: series("v", func(h int) types.WeatherPoint {
			if h%2 == 0 {
				return types.WeatherPoint{CloudCover: 10}
			}
			return types.WeatherPoint{CloudCover: 60}
		}),
	}

	f := analyzeSkyClarity(pair, types.DefaultCriteria(), time.UTC)
	// Hours 2..6: 2,4,6 clear out of 5.
	assert.InDelta(t, 60, f.ClearPeriodCoverage, 1e-9)
	assert.False(t, f.Meets)
	assert.InDelta(t, 48, f.Confidence, 1e-9)
	assert.Zero(t, f.MountainCloudCover)
}

func TestTemperature_ColderValleyFails(t *testing.T) {
	f := analyzeTemperature(badPair(), types.DefaultCriteria(), time.UTC)
	assert.InDelta(t, -3, f.Differential, 1e-9)
	assert.False(t, f.Meets)
	assert.Zero(t, f.Confidence)
}

func TestWavePattern_Neutral(t *testing.T) {
	pair := types.ForecastPair{
		Valley: series("v", func(int) types.WeatherPoint {
			return types.WeatherPoint{WindSpeedMS: 6, WindDirectionDeg: 45}
		}),
		Mountain: series("m", func(int) types.WeatherPoint {
			return types.WeatherPoint{WindSpeedMS: 6}
		}),
	}

	f := analyzeWavePattern(pair, types.DefaultCriteria(), time.UTC)
	assert.Equal(t, types.WaveNeutral, f.Pattern)
	assert.False(t, f.Meets)
	assert.InDelta(t, 300, f.MixingHeight, 1e-9)
	assert.InDelta(t, 60, f.Confidence, 1e-9)
}

func TestIsDownslope(t *testing.T) {
	for _, deg := range []float64{0, 45, 90, 270, 315, 360} {
		assert.True(t, isDownslope(deg), deg)
	}
	for _, deg := range []float64{91, 180, 269.9} {
		assert.False(t, isDownslope(deg), deg)
	}
}

// ============================================================
// Aggregation and classification
// ============================================================

func TestProbability_KnownMix(t *testing.T) {
	f := types.Factors{
		Precipitation: types.PrecipitationFactor{Meets: true, Confidence: 90},
		SkyClarity:    types.SkyClarityFactor{Meets: true, Confidence: 80},
		Pressure:      types.PressureFactor{Meets: true, Confidence: 70},
		Temperature:   types.TemperatureFactor{Meets: false, Confidence: 40},
		WavePattern:   types.WavePatternFactor{Meets: false, Confidence: 10, Pattern: types.WaveNeutral},
	}

	// (22.5 + 20 + 14 + 3 + 0) / 0.95 * (1.10 + 0.05) = 72.03
	assert.InDelta(t, 1.15, Multiplier(f), 1e-9)
	assert.Equal(t, 72, Probability(f))
}

func TestProbability_AllFailing(t *testing.T) {
	f := types.Factors{
		Precipitation: types.PrecipitationFactor{Confidence: 50},
		SkyClarity:    types.SkyClarityFactor{Confidence: 50},
		Pressure:      types.PressureFactor{Confidence: 50},
		Temperature:   types.TemperatureFactor{Confidence: 50},
		WavePattern:   types.WavePatternFactor{Confidence: 50, Pattern: types.WaveNeutral},
	}
	assert.Equal(t, 30, Probability(f))
}

func TestProbability_AlwaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	patterns := []types.WavePattern{types.WavePositive, types.WaveNeutral, types.WaveNegative}

	for i := 0; i < 2000; i++ {
		f := types.Factors{
			Precipitation: types.PrecipitationFactor{Meets: rng.Intn(2) == 0, Confidence: rng.Float64() * 100},
			SkyClarity:    types.SkyClarityFactor{Meets: rng.Intn(2) == 0, Confidence: rng.Float64() * 100},
			Pressure:      types.PressureFactor{Meets: rng.Intn(2) == 0, Confidence: rng.Float64() * 100},
			Temperature:   types.TemperatureFactor{Meets: rng.Intn(2) == 0, Confidence: rng.Float64() * 100},
			WavePattern:   types.WavePatternFactor{Pattern: patterns[rng.Intn(3)], Confidence: rng.Float64() * 100},
		}
		f.WavePattern.Meets = f.WavePattern.Pattern == types.WavePositive

		p := Probability(f)
		require.GreaterOrEqual(t, p, 0)
		require.LessOrEqual(t, p, 100)

		rec := Recommend(p, Tier(f))
		if rec == types.RecommendGo {
			require.GreaterOrEqual(t, p, 50)
		}
		if rec == types.RecommendSkip {
			require.Less(t, p, 40)
		}
	}
}

func TestTier(t *testing.T) {
	build := func(c ...float64) types.Factors {
		return types.Factors{
			Precipitation: types.PrecipitationFactor{Confidence: c[0]},
			SkyClarity:    types.SkyClarityFactor{Confidence: c[1]},
			Pressure:      types.PressureFactor{Confidence: c[2]},
			Temperature:   types.TemperatureFactor{Confidence: c[3]},
			WavePattern:   types.WavePatternFactor{Confidence: c[4]},
		}
	}

	tests := []struct {
		name string
		conf []float64
		want types.ConfidenceTier
	}{
		{"three strong, mean 76", []float64{80, 80, 80, 70, 70}, types.ConfidenceHigh},
		{"three strong, mean 75", []float64{80, 80, 80, 70, 65}, types.ConfidenceMedium},
		{"two strong, mean 62", []float64{80, 80, 50, 50, 50}, types.ConfidenceMedium},
		{"two strong, mean 60", []float64{80, 80, 40, 50, 50}, types.ConfidenceLow},
		{"one strong", []float64{100, 70, 70, 70, 70}, types.ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tier(build(tt.conf...)))
		})
	}
}

func TestRecommend_Boundaries(t *testing.T) {
	want := map[types.ConfidenceTier]map[int]types.Recommendation{
		types.ConfidenceLow: {
			39: types.RecommendSkip, 40: types.RecommendMaybe, 49: types.RecommendMaybe,
			50: types.RecommendMaybe, 69: types.RecommendMaybe, 70: types.RecommendMaybe,
		},
		types.ConfidenceMedium: {
			39: types.RecommendSkip, 40: types.RecommendMaybe, 49: types.RecommendMaybe,
			50: types.RecommendMaybe, 69: types.RecommendMaybe, 70: types.RecommendGo,
		},
		types.ConfidenceHigh: {
			39: types.RecommendSkip, 40: types.RecommendMaybe, 49: types.RecommendMaybe,
			50: types.RecommendGo, 69: types.RecommendGo, 70: types.RecommendGo,
		},
	}
	for tier, cases := range want {
		for prob, rec := range cases {
			assert.Equal(t, rec, Recommend(prob, tier), "tier=%s probability=%d", tier, prob)
		}
	}
}

func TestWeightsSum(t *testing.T) {
	sum := 0.0
	for _, w := range factorWeights {
		sum += w
	}
	assert.True(t, math.Abs(sum-0.95) < 1e-9)
}

func TestTargetDate(t *testing.T) {
	denver, err := time.LoadLocation("America/Denver")
	require.NoError(t, err)
	a, err := New(Config{Location: denver})
	require.NoError(t, err)

	today := types.CalendarDate{Year: 2026, Month: 10, Day: 18}
	tomorrow := types.CalendarDate{Year: 2026, Month: 10, Day: 19}

	assert.Equal(t, today, a.TargetDate(time.Date(2026, 10, 18, 3, 0, 0, 0, denver)), "pre-dawn targets today")
	assert.Equal(t, today, a.TargetDate(time.Date(2026, 10, 18, 8, 30, 0, 0, denver)), "last window hour still counts")
	assert.Equal(t, tomorrow, a.TargetDate(time.Date(2026, 10, 18, 9, 0, 0, 0, denver)))
	assert.Equal(t, tomorrow, a.TargetDate(time.Date(2026, 10, 19, 2, 0, 0, 0, time.UTC)), "evening in Denver is still the 18th")
}
