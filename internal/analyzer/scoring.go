package analyzer

import (
	"math"

	"katabatic/internal/types"
)

// factorWeights are the fixed aggregation weights. They intentionally sum to
// 0.95; the aggregate is normalized by the weight actually applied.
var factorWeights = map[types.FactorName]float64{
	types.FactorPrecipitation: 0.25,
	types.FactorSkyClarity:    0.25,
	types.FactorPressure:      0.20,
	types.FactorTemperature:   0.15,
	types.FactorWavePattern:   0.10,
}

// Aggregation policy.
const (
	failingFactorPenalty = 20.0

	bonusFourFactors  = 1.15
	bonusThreeFactors = 1.10
	bonusRainAndSky   = 0.05
	bonusPositiveWave = 0.08
)

// Probability combines the factor confidences into a single 0-100 integer.
func Probability(f types.Factors) int {
	score, totalWeight := 0.0, 0.0
	for _, s := range f.Scores() {
		w := factorWeights[s.Name]
		if s.Meets {
			score += s.Confidence * w
		} else {
			score += math.Max(0, s.Confidence-failingFactorPenalty) * w
		}
		totalWeight += w
	}

	base := 0.0
	if totalWeight > 0 {
		base = score / totalWeight
	}
	return int(clamp(math.Round(base*Multiplier(f)), 0, 100))
}

// Multiplier returns the bonus applied on top of the weighted base score.
func Multiplier(f types.Factors) float64 {
	m := 1.0
	switch met := f.MetCount(); {
	case met >= 4:
		m = bonusFourFactors
	case met >= 3:
		m = bonusThreeFactors
	}
	if f.Precipitation.Meets && f.SkyClarity.Meets {
		m += bonusRainAndSky
	}
	if f.WavePattern.Pattern == types.WavePositive {
		m += bonusPositiveWave
	}
	return m
}

// Tier maps the factor confidences to a discrete confidence level.
func Tier(f types.Factors) types.ConfidenceTier {
	scores := f.Scores()
	high, sum := 0, 0.0
	for _, s := range scores {
		if s.Confidence > 70 {
			high++
		}
		sum += s.Confidence
	}
	avg := sum / float64(len(scores))

	switch {
	case high >= 3 && avg > 75:
		return types.ConfidenceHigh
	case high >= 2 && avg > 60:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}

// Recommend derives go/maybe/skip from probability and tier. Rules are
// evaluated in order and the first match wins.
func Recommend(probability int, tier types.ConfidenceTier) types.Recommendation {
	switch {
	case probability >= 70 && tier != types.ConfidenceLow:
		return types.RecommendGo
	case probability >= 50 && tier == types.ConfidenceHigh:
		return types.RecommendGo
	case probability >= 40:
		return types.RecommendMaybe
	default:
		return types.RecommendSkip
	}
}
