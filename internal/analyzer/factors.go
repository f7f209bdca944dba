package analyzer

import (
	"math"
	"time"

	"katabatic/internal/forecasts"
	"katabatic/internal/types"
)

// Factor policy constants.
const (
	// clearSkyCloudCover is the cloud cover below which an hour counts as clear.
	clearSkyCloudCover = 30.0

	// pressureLookahead is the index of the sample compared with the first
	// one (roughly six hours ahead on an hourly series).
	pressureLookahead = 6
	// pressureDeadBand is the change in hPa below which the trend is stable.
	pressureDeadBand = 1.0

	// Wave pattern classification bounds.
	waveConsistencyHigh  = 0.7
	waveConsistencyLow   = 0.3
	waveValleyWindCalm   = 5.0
	waveValleyWindStrong = 8.0
	waveShearLow         = 3.0

	// Mixing height estimate.
	mixingHeightFloor      = 300.0
	mixingHeightBase       = 500.0
	mixingHeightPerShear   = 100.0
	mixingHeightShearFloor = 1.0
)

// analyzePrecipitation scores the highest rain probability the valley sees
// across the clear-sky and prediction windows.
func analyzePrecipitation(pair types.ForecastPair, c types.Criteria, loc *time.Location) types.PrecipitationFactor {
	f := types.PrecipitationFactor{
		Threshold:  c.MaxPrecipitationProbability,
		DataSource: sourceOf(pair.Valley),
	}
	points := forecasts.ExtractUnion(pair.Valley.Hourly, loc, c.ClearSkyWindow, c.PredictionWindow)
	if len(points) == 0 {
		f.DataSource = types.DataSourceNoData
		return f
	}

	maxProb := 0.0
	for _, p := range points {
		maxProb = math.Max(maxProb, p.PrecipitationProbability)
	}
	f.MaxProbability = maxProb
	f.Meets = maxProb <= c.MaxPrecipitationProbability

	switch {
	case f.Meets && c.MaxPrecipitationProbability <= 0:
		f.Confidence = 100
	case f.Meets:
		f.Confidence = 100 - (maxProb/c.MaxPrecipitationProbability)*50
	default:
		f.Confidence = 50 - (maxProb-c.MaxPrecipitationProbability)*2
	}
	f.Confidence = clamp(f.Confidence, 0, 100)
	return f
}

// analyzeSkyClarity scores how much of the clear-sky window is clear at
// both sites. A site without samples in the window is left out of the
// average; with neither site reporting the factor has no data.
func analyzeSkyClarity(pair types.ForecastPair, c types.Criteria, loc *time.Location) types.SkyClarityFactor {
	f := types.SkyClarityFactor{
		Threshold:  c.MinCloudCoverClearPeriod,
		DataSource: sourceOf(pair.Valley),
	}

	valley := forecasts.ExtractWindow(pair.Valley.Hourly, c.ClearSkyWindow, loc)
	mountain := forecasts.ExtractWindow(pair.Mountain.Hourly, c.ClearSkyWindow, loc)

	var fractions []float64
	if len(valley) > 0 {
		f.ValleyCloudCover = mean(valley, func(p types.WeatherPoint) float64 { return p.CloudCover })
		fractions = append(fractions, clearFraction(valley))
	}
	if len(mountain) > 0 {
		f.MountainCloudCover = mean(mountain, func(p types.WeatherPoint) float64 { return p.CloudCover })
		fractions = append(fractions, clearFraction(mountain))
	}
	if len(fractions) == 0 {
		f.DataSource = types.DataSourceNoData
		return f
	}

	sum := 0.0
	for _, v := range fractions {
		sum += v
	}
	f.ClearPeriodCoverage = sum / float64(len(fractions))
	f.Meets = f.ClearPeriodCoverage >= c.MinCloudCoverClearPeriod
	if f.Meets {
		f.Confidence = clamp(f.ClearPeriodCoverage*1.3, 0, 100)
	} else {
		f.Confidence = clamp(f.ClearPeriodCoverage*0.8, 0, 100)
	}
	return f
}

// clearFraction returns the percentage of points with cloud cover below
// clearSkyCloudCover.
func clearFraction(points []types.WeatherPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	clear := 0
	for _, p := range points {
		if p.CloudCover < clearSkyCloudCover {
			clear++
		}
	}
	return float64(clear) / float64(len(points)) * 100
}

// analyzePressure compares the first valley sample with the one
// pressureLookahead hours later (or the last one on a shorter series).
func analyzePressure(pair types.ForecastPair, c types.Criteria) types.PressureFactor {
	f := types.PressureFactor{
		Trend:      types.PressureStable,
		Threshold:  c.MinPressureChange,
		DataSource: sourceOf(pair.Valley),
	}
	series := pair.Valley.Hourly
	if len(series) < 2 {
		f.DataSource = types.DataSourceNoData
		return f
	}

	idx := pressureLookahead
	if idx > len(series)-1 {
		idx = len(series) - 1
	}
	first, later := series[0], series[idx]
	f.Change = later.PressureHPa - first.PressureHPa
	if hours := later.Time().Sub(first.Time()).Hours(); hours > 0 {
		f.HourlyRate = f.Change / hours
	}

	switch {
	case f.Change > pressureDeadBand:
		f.Trend = types.PressureRising
	case f.Change < -pressureDeadBand:
		f.Trend = types.PressureFalling
	}

	magnitude := math.Abs(f.Change)
	f.Meets = magnitude >= c.MinPressureChange
	if f.Meets {
		f.Confidence = clamp(65+magnitude*10, 0, 100)
	} else {
		f.Confidence = clamp(magnitude*20, 0, 100)
	}
	return f
}

// analyzeTemperature compares mean valley and mountain temperatures over the
// prediction window. Only a warmer valley counts.
func analyzeTemperature(pair types.ForecastPair, c types.Criteria, loc *time.Location) types.TemperatureFactor {
	f := types.TemperatureFactor{
		Threshold:  c.MinTemperatureDifferential,
		DataSource: sourceOf(pair.Valley),
	}
	valley := forecasts.ExtractWindow(pair.Valley.Hourly, c.PredictionWindow, loc)
	mountain := forecasts.ExtractWindow(pair.Mountain.Hourly, c.PredictionWindow, loc)
	if len(valley) == 0 || len(mountain) == 0 {
		f.DataSource = types.DataSourceNoData
		return f
	}

	temp := func(p types.WeatherPoint) float64 { return p.TemperatureC }
	f.ValleyTemp = mean(valley, temp)
	f.MountainTemp = mean(mountain, temp)
	f.Differential = f.ValleyTemp - f.MountainTemp
	f.Meets = f.Differential >= c.MinTemperatureDifferential
	if f.Meets {
		f.Confidence = clamp(75+(f.Differential-c.MinTemperatureDifferential)*5, 0, 100)
	} else {
		f.Confidence = clamp(f.Differential*10, 0, 100)
	}
	return f
}

// analyzeWavePattern looks for steady, light downslope flow in the valley
// with little speed difference to the mountain site.
func analyzeWavePattern(pair types.ForecastPair, c types.Criteria, loc *time.Location) types.WavePatternFactor {
	f := types.WavePatternFactor{
		Pattern:    types.WaveNeutral,
		Threshold:  c.MinWavePatternScore,
		DataSource: sourceOf(pair.Valley),
	}
	valley := forecasts.ExtractWindow(pair.Valley.Hourly, c.PredictionWindow, loc)
	if len(valley) == 0 {
		f.DataSource = types.DataSourceNoData
		return f
	}
	mountain := forecasts.ExtractWindow(pair.Mountain.Hourly, c.PredictionWindow, loc)

	speed := func(p types.WeatherPoint) float64 { return p.WindSpeedMS }
	f.ValleyWindSpeed = mean(valley, speed)
	f.MountainWindSpeed = mean(mountain, speed)

	downslope := 0
	for _, p := range valley {
		if isDownslope(p.WindDirectionDeg) {
			downslope++
		}
	}
	f.DirectionalConsistency = float64(downslope) / float64(len(valley))
	f.WindShear = math.Abs(f.ValleyWindSpeed - f.MountainWindSpeed)

	if f.WindShear < mixingHeightShearFloor {
		f.MixingHeight = mixingHeightFloor
	} else {
		f.MixingHeight = mixingHeightBase + f.WindShear*mixingHeightPerShear
	}

	switch {
	case f.DirectionalConsistency > waveConsistencyHigh &&
		f.ValleyWindSpeed < waveValleyWindCalm &&
		f.WindShear < waveShearLow:
		f.Pattern = types.WavePositive
	case f.DirectionalConsistency < waveConsistencyLow || f.ValleyWindSpeed > waveValleyWindStrong:
		f.Pattern = types.WaveNegative
	}

	f.Meets = f.Pattern == types.WavePositive
	switch f.Pattern {
	case types.WavePositive:
		f.Confidence = clamp(60+f.DirectionalConsistency*40, 0, 100)
	case types.WaveNegative:
		f.Confidence = clamp(f.DirectionalConsistency*30, 0, 100)
	default:
		f.Confidence = clamp(30+f.DirectionalConsistency*30, 0, 100)
	}
	return f
}

// isDownslope reports whether a wind direction lies in the NW-through-NE arc.
func isDownslope(deg float64) bool {
	return (deg >= 270 && deg <= 360) || (deg >= 0 && deg <= 90)
}

func sourceOf(s types.LocationSeries) string {
	if s.Source != "" {
		return s.Source
	}
	return "forecast"
}

// mean returns the average of field over points, or 0 for no points.
func mean(points []types.WeatherPoint, field func(types.WeatherPoint) float64) float64 {
	if len(points) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range points {
		sum += field(p)
	}
	return sum / float64(len(points))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
