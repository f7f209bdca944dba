package analyzer

import (
	"fmt"

	"katabatic/internal/types"
)

// explain builds the summary sentence and per-factor detail lines.
func explain(p types.Prediction, c types.Criteria) (string, []string) {
	var summary string
	switch p.Recommendation {
	case types.RecommendGo:
		summary = fmt.Sprintf("Good katabatic conditions likely (%d%%, %s confidence). Worth getting up for the %s window.",
			p.Probability, p.ConfidenceTier, c.PredictionWindow)
	case types.RecommendMaybe:
		summary = fmt.Sprintf("Mixed signals (%d%%, %s confidence). Check conditions again before the %s window.",
			p.Probability, p.ConfidenceTier, c.PredictionWindow)
	default:
		summary = fmt.Sprintf("Katabatic flow unlikely (%d%%, %s confidence). Skip this dawn.",
			p.Probability, p.ConfidenceTier)
	}
	if float64(p.Probability) < c.MinimumConfidence && p.Recommendation != types.RecommendSkip {
		summary += fmt.Sprintf(" Below the %.0f%% confidence floor.", c.MinimumConfidence)
	}

	f := p.Factors
	details := []string{
		factorLine("Precipitation", f.Precipitation.Meets, f.Precipitation.DataSource,
			fmt.Sprintf("max %.0f%% chance (limit %.0f%%)", f.Precipitation.MaxProbability, f.Precipitation.Threshold)),
		factorLine("Clear skies", f.SkyClarity.Meets, f.SkyClarity.DataSource,
			fmt.Sprintf("%.0f%% of the %s window clear (need %.0f%%)", f.SkyClarity.ClearPeriodCoverage, c.ClearSkyWindow, f.SkyClarity.Threshold)),
		factorLine("Pressure", f.Pressure.Meets, f.Pressure.DataSource,
			fmt.Sprintf("%s, %+.1f hPa (need %.1f)", f.Pressure.Trend, f.Pressure.Change, f.Pressure.Threshold)),
		factorLine("Temperature", f.Temperature.Meets, f.Temperature.DataSource,
			fmt.Sprintf("valley %+.1f°C vs mountain (need %.1f)", f.Temperature.Differential, f.Temperature.Threshold)),
		factorLine("Wave pattern", f.WavePattern.Meets, f.WavePattern.DataSource,
			fmt.Sprintf("%s, %.0f%% downslope, shear %.1f m/s", f.WavePattern.Pattern, f.WavePattern.DirectionalConsistency*100, f.WavePattern.WindShear)),
	}
	return summary, details
}

func factorLine(name string, meets bool, source, detail string) string {
	if source == types.DataSourceNoData {
		return fmt.Sprintf("%s: no forecast data", name)
	}
	status := "fail"
	if meets {
		status = "pass"
	}
	return fmt.Sprintf("%s: %s - %s", name, status, detail)
}
