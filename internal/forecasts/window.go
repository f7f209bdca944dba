package forecasts

import (
	"time"

	"katabatic/internal/types"
)

// ExtractWindow returns the points whose local hour in loc falls inside w,
// inclusive at both ends. Windows with start hour after end hour wrap
// midnight. Minutes in the window bounds are not compared, so "02:30" behaves
// like "02:00".
//
// An invalid window or an empty input yields an empty (non-nil) slice.
func ExtractWindow(points []types.WeatherPoint, w types.TimeWindow, loc *time.Location) []types.WeatherPoint {
	out := make([]types.WeatherPoint, 0, len(points))
	if _, _, err := w.Hours(); err != nil {
		return out
	}
	for _, p := range points {
		if w.ContainsHour(p.LocalHour(loc)) {
			out = append(out, p)
		}
	}
	return out
}

// ExtractUnion returns the points that fall in any of the windows, in input
// order. A point matched by several windows appears once.
func ExtractUnion(points []types.WeatherPoint, loc *time.Location, windows ...types.TimeWindow) []types.WeatherPoint {
	out := make([]types.WeatherPoint, 0, len(points))
	for i, p := range points {
		hour := p.LocalHour(loc)
		for _, w := range windows {
			if w.ContainsHour(hour) {
				out = append(out, points[i])
				break
			}
		}
	}
	return out
}
