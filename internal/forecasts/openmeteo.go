package forecasts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"katabatic/internal/external"
	"katabatic/internal/types"
)

// SourceOpenMeteo tags series fetched from the Open-Meteo API.
const SourceOpenMeteo = "open-meteo"

// DefaultOpenMeteoURL is the public Open-Meteo endpoint.
const DefaultOpenMeteoURL = "https://api.open-meteo.com"

// hourlyVariables are requested in this order and mapped onto WeatherPoint.
const hourlyVariables = "temperature_2m,surface_pressure,precipitation_probability,cloud_cover,wind_speed_10m,wind_direction_10m,relative_humidity_2m"

// HTTPDoer is satisfied by *external.BaseClient and *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// OpenMeteoClient fetches hourly series for a site. Units are requested in
// metric with wind in m/s and timestamps as unix seconds.
type OpenMeteoClient struct {
	doer    HTTPDoer
	baseURL string
	logger  *slog.Logger
}

// NewOpenMeteoClient creates a client. A nil doer gets a BaseClient with
// default breaker and retry settings.
func NewOpenMeteoClient(doer HTTPDoer, baseURL string, logger *slog.Logger) *OpenMeteoClient {
	if logger == nil {
		logger = slog.Default()
	}
	if doer == nil {
		doer = external.NewBaseClient(nil,
			external.BreakerSettings{Name: SourceOpenMeteo},
			external.DefaultRetryPolicy(),
			"katabatic/1.0",
			external.WithLogger(logger),
		)
	}
	if baseURL == "" {
		baseURL = DefaultOpenMeteoURL
	}
	return &OpenMeteoClient{doer: doer, baseURL: baseURL, logger: logger}
}

type openMeteoSample struct {
	Time                     int64    `json:"time"`
	Temperature              *float64 `json:"temperature_2m"`
	SurfacePressure          *float64 `json:"surface_pressure"`
	PrecipitationProbability *float64 `json:"precipitation_probability"`
	CloudCover               *float64 `json:"cloud_cover"`
	WindSpeed                *float64 `json:"wind_speed_10m"`
	WindDirection            *float64 `json:"wind_direction_10m"`
	Humidity                 *float64 `json:"relative_humidity_2m"`
}

type openMeteoHourly struct {
	Time                     []int64    `json:"time"`
	Temperature              []*float64 `json:"temperature_2m"`
	SurfacePressure          []*float64 `json:"surface_pressure"`
	PrecipitationProbability []*float64 `json:"precipitation_probability"`
	CloudCover               []*float64 `json:"cloud_cover"`
	WindSpeed                []*float64 `json:"wind_speed_10m"`
	WindDirection            []*float64 `json:"wind_direction_10m"`
	Humidity                 []*float64 `json:"relative_humidity_2m"`
}

type openMeteoResponse struct {
	Latitude  float64         `json:"latitude"`
	Longitude float64         `json:"longitude"`
	Current   openMeteoSample `json:"current"`
	Hourly    openMeteoHourly `json:"hourly"`
	Error     bool            `json:"error"`
	Reason    string          `json:"reason"`
}

// Hourly returns the series for site covering the calendar days from..to
// inclusive, in the time zone tz (an IANA name).
func (c *OpenMeteoClient) Hourly(ctx context.Context, site types.Site, from, to types.CalendarDate, tz string) (types.LocationSeries, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(site.Lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(site.Lon, 'f', 4, 64))
	q.Set("hourly", hourlyVariables)
	q.Set("current", hourlyVariables)
	q.Set("wind_speed_unit", "ms")
	q.Set("timeformat", "unixtime")
	q.Set("timezone", tz)
	q.Set("start_date", from.String())
	q.Set("end_date", to.String())

	endpoint := c.baseURL + "/v1/forecast?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return types.LocationSeries{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build weather request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		return types.LocationSeries{}, types.NewAppErrorWithDetails(types.ErrCodeUpstreamWeather,
			"weather provider unavailable", err, map[string]any{"site": site.Name})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return types.LocationSeries{}, types.NewAppError(types.ErrCodeUpstreamWeather, "failed to read weather response", err)
	}

	var parsed openMeteoResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return types.LocationSeries{}, types.NewAppError(types.ErrCodeUpstreamWeather, "malformed weather response", err)
	}
	if resp.StatusCode != http.StatusOK || parsed.Error {
		return types.LocationSeries{}, types.NewAppErrorWithDetails(types.ErrCodeUpstreamWeather,
			fmt.Sprintf("weather provider returned %d", resp.StatusCode), nil,
			map[string]any{"site": site.Name, "reason": parsed.Reason})
	}

	series := types.LocationSeries{
		Name:    site.Name,
		Role:    site.Role,
		Source:  SourceOpenMeteo,
		Lat:     site.Lat,
		Lon:     site.Lon,
		Fetched: time.Now().UTC(),
		Hourly:  parsed.Hourly.points(),
	}
	if parsed.Current.Time > 0 {
		series.Current = parsed.Current.point()
	} else if n := len(series.Hourly); n > 0 {
		series.Current = series.Hourly[0]
	}

	c.logger.DebugContext(ctx, "weather series fetched",
		"site", site.Name,
		"points", len(series.Hourly),
		"from", from.String(),
		"to", to.String(),
	)
	return series, nil
}

func (s openMeteoSample) point() types.WeatherPoint {
	return types.WeatherPoint{
		Timestamp:                s.Time * 1000,
		TemperatureC:             deref(s.Temperature),
		PressureHPa:              deref(s.SurfacePressure),
		PrecipitationProbability: deref(s.PrecipitationProbability),
		CloudCover:               deref(s.CloudCover),
		WindSpeedMS:              deref(s.WindSpeed),
		WindDirectionDeg:         deref(s.WindDirection),
		Humidity:                 deref(s.Humidity),
	}
}

// points zips the column arrays into WeatherPoints. Hours where the
// provider has no temperature or pressure are skipped.
func (h openMeteoHourly) points() []types.WeatherPoint {
	out := make([]types.WeatherPoint, 0, len(h.Time))
	for i, ts := range h.Time {
		temp := at(h.Temperature, i)
		pressure := at(h.SurfacePressure, i)
		if temp == nil || pressure == nil {
			continue
		}
		out = append(out, types.WeatherPoint{
			Timestamp:                ts * 1000,
			TemperatureC:             *temp,
			PressureHPa:              *pressure,
			PrecipitationProbability: deref(at(h.PrecipitationProbability, i)),
			CloudCover:               deref(at(h.CloudCover, i)),
			WindSpeedMS:              deref(at(h.WindSpeed, i)),
			WindDirectionDeg:         deref(at(h.WindDirection, i)),
			Humidity:                 deref(at(h.Humidity, i)),
		})
	}
	return out
}

func at(values []*float64, i int) *float64 {
	if i < len(values) {
		return values[i]
	}
	return nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
