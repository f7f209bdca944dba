// Package forecasts acquires weather series for the valley and mountain
// sites and slices them into the local-time windows the analyzer scores.
package forecasts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"katabatic/internal/types"
)

// HourlySource delivers hourly series for one site over a range of days.
type HourlySource interface {
	Hourly(ctx context.Context, site types.Site, from, to types.CalendarDate, tz string) (types.LocationSeries, error)
}

// Service fetches forecast pairs and observed samples for the configured
// sites.
type Service struct {
	source   HourlySource
	valley   types.Site
	mountain types.Site
	location *time.Location
	logger   *slog.Logger
}

// NewService creates a Service. loc is the site time zone.
func NewService(source HourlySource, valley, mountain types.Site, loc *time.Location, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	valley.Role = types.SiteValley
	mountain.Role = types.SiteMountain
	return &Service{
		source:   source,
		valley:   valley,
		mountain: mountain,
		location: loc,
		logger:   logger,
	}
}

// FetchPair fetches both sites concurrently for the days from..to. Either
// site failing fails the pair; the analyzer needs both.
func (s *Service) FetchPair(ctx context.Context, from, to types.CalendarDate) (types.ForecastPair, error) {
	var pair types.ForecastPair
	tz := s.location.String()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		series, err := s.source.Hourly(gCtx, s.valley, from, to, tz)
		if err != nil {
			return fmt.Errorf("valley %s: %w", s.valley.Name, err)
		}
		pair.Valley = series
		return nil
	})
	g.Go(func() error {
		series, err := s.source.Hourly(gCtx, s.mountain, from, to, tz)
		if err != nil {
			return fmt.Errorf("mountain %s: %w", s.mountain.Name, err)
		}
		pair.Mountain = series
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "forecast pair fetch failed", "error", err)
		return types.ForecastPair{}, err
	}

	s.logger.InfoContext(ctx, "forecast pair fetched",
		"valley_points", len(pair.Valley.Hourly),
		"mountain_points", len(pair.Mountain.Hourly),
	)
	return pair, nil
}

// ObservedWindow returns the valley samples for date that fall in w. The
// result is empty (not an error) when the provider has no data there.
func (s *Service) ObservedWindow(ctx context.Context, date types.CalendarDate, w types.TimeWindow) ([]types.WeatherPoint, error) {
	series, err := s.source.Hourly(ctx, s.valley, date, date, s.location.String())
	if err != nil {
		return nil, err
	}

	onDate := make([]types.WeatherPoint, 0, len(series.Hourly))
	for _, p := range series.Hourly {
		if types.DateOf(p.Time(), s.location) == date {
			onDate = append(onDate, p)
		}
	}
	return ExtractWindow(onDate, w, s.location), nil
}

// Location returns the site time zone.
func (s *Service) Location() *time.Location {
	return s.location
}
