package types

import "time"

// WeatherPoint is one hourly sample delivered by the weather provider.
// Timestamp is epoch milliseconds; units are metric (°C, hPa, m/s) and
// percentages are 0-100.
type WeatherPoint struct {
	Timestamp                int64   `json:"timestamp" validate:"required"`
	TemperatureC             float64 `json:"temperature"`
	PressureHPa              float64 `json:"pressure"`
	PrecipitationProbability float64 `json:"precipitation_probability" validate:"gte=0,lte=100"`
	CloudCover               float64 `json:"cloud_cover" validate:"gte=0,lte=100"`
	WindSpeedMS              float64 `json:"wind_speed" validate:"gte=0"`
	WindDirectionDeg         float64 `json:"wind_direction" validate:"gte=0,lte=360"`
	Humidity                 float64 `json:"humidity" validate:"gte=0,lte=100"`
}

// Time returns the sample instant.
func (p WeatherPoint) Time() time.Time {
	return time.UnixMilli(p.Timestamp)
}

// LocalHour returns the hour of day of the sample in loc.
func (p WeatherPoint) LocalHour(loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	return p.Time().In(loc).Hour()
}

// SiteRole identifies which side of the slope a series describes.
type SiteRole string

const (
	SiteValley   SiteRole = "valley"
	SiteMountain SiteRole = "mountain"
)

// LocationSeries is the provider payload for one site: the current
// observation plus the hourly forecast in chronological order.
type LocationSeries struct {
	Name    string         `json:"name" validate:"required"`
	Role    SiteRole       `json:"role,omitempty"`
	Source  string         `json:"source,omitempty"`
	Current WeatherPoint   `json:"current"`
	Hourly  []WeatherPoint `json:"hourly" validate:"dive"`
	Lat     float64        `json:"lat,omitempty"`
	Lon     float64        `json:"lon,omitempty"`
	Fetched time.Time      `json:"fetched_at,omitempty"`
}

// Site is the configured geographic location of one side of the slope.
type Site struct {
	Name string
	Role SiteRole
	Lat  float64
	Lon  float64
}

// ForecastPair is the analyzer input: the valley site where the wind is
// expected and the mountain reference site above it.
type ForecastPair struct {
	Valley   LocationSeries `json:"valley" validate:"required"`
	Mountain LocationSeries `json:"mountain" validate:"required"`
}
