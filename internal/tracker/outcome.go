package tracker

import (
	"math"
	"time"

	"katabatic/internal/types"
)

// OutcomeFromSamples reduces observed wind samples from the prediction
// window to an Outcome. Speeds are converted from m/s to mph and the
// direction is a circular mean so that 350° and 10° average to 0°.
// A dawn is a success when the mean speed reaches GoodWindThresholdMph.
func OutcomeFromSamples(samples []types.WeatherPoint, source string, now time.Time) (types.Outcome, error) {
	if len(samples) == 0 {
		return types.Outcome{}, types.NewAppError(types.ErrCodeValidationNoSamples,
			"no observation samples in the prediction window", nil)
	}

	var sum, sinSum, cosSum float64
	minMph := math.Inf(1)
	maxMph := math.Inf(-1)
	for _, s := range samples {
		mph := s.WindSpeedMS * types.MetersPerSecondToMph
		sum += mph
		minMph = math.Min(minMph, mph)
		maxMph = math.Max(maxMph, mph)

		rad := s.WindDirectionDeg * math.Pi / 180
		sinSum += math.Sin(rad)
		cosSum += math.Cos(rad)
	}

	meanMph := sum / float64(len(samples))
	dir := math.Atan2(sinSum, cosSum) * 180 / math.Pi
	if dir < 0 {
		dir += 360
	}

	if source == "" {
		source = "observation"
	}
	return types.Outcome{
		ObservedAt:          now,
		ActualWindSpeed:     round1(meanMph),
		ActualWindDirection: math.Round(dir),
		MinWindSpeed:        round1(minMph),
		MaxWindSpeed:        round1(maxMph),
		SampleCount:         len(samples),
		Success:             meanMph >= types.GoodWindThresholdMph,
		Source:              source,
	}, nil
}
