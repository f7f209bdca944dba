// Package config defines the process configuration for the katabatic
// services. Configuration is loaded once at startup and is immutable
// thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> SecretProvider (Lowest)
//
// A missing required value or an invalid format fails startup.
package config

import (
	"fmt"
	"time"

	"katabatic/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"katabatic"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server   ServerConfig
	Store    StoreConfig
	Tracker  TrackerConfig
	Sites    SitesConfig
	Criteria CriteriaConfig
	Weather  WeatherConfig
	AWS      AWSConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo `ignored:"true"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}

// StoreConfig selects the key-value backend holding prediction history.
type StoreConfig struct {
	Backend string `envconfig:"STORE_BACKEND" default:"memory" validate:"oneof=memory postgres pebble sqlite"`
	// Path is the pebble directory or sqlite file.
	Path        string       `envconfig:"STORE_PATH" default:"data/katabatic"`
	DatabaseURL SecretString `envconfig:"DATABASE_URL" validate:"required_if=Backend postgres"`
	MaxConns    int32        `envconfig:"DB_MAX_CONNS" default:"4" validate:"gte=1"`
}

// TrackerConfig tunes prediction bookkeeping.
type TrackerConfig struct {
	// UpdateThreshold of 0 means the environment default (see
	// DefaultUpdateThreshold).
	UpdateThreshold int    `envconfig:"TRACKER_UPDATE_THRESHOLD" validate:"gte=0,lte=100"`
	MaxEntries      int    `envconfig:"TRACKER_MAX_ENTRIES" default:"100" validate:"gte=1"`
	StorageKey      string `envconfig:"TRACKER_STORAGE_KEY" default:"katabatic_predictions" validate:"required"`
	Compress        bool   `envconfig:"TRACKER_COMPRESS" default:"false"`
}

// SitesConfig locates the valley site and its mountain reference.
type SitesConfig struct {
	ValleyName   string  `envconfig:"VALLEY_NAME" default:"Morrison"`
	ValleyLat    float64 `envconfig:"VALLEY_LAT" default:"39.6536" validate:"gte=-90,lte=90"`
	ValleyLon    float64 `envconfig:"VALLEY_LON" default:"-105.1911" validate:"gte=-180,lte=180"`
	MountainName string  `envconfig:"MOUNTAIN_NAME" default:"Mount Blue Sky"`
	MountainLat  float64 `envconfig:"MOUNTAIN_LAT" default:"39.5883" validate:"gte=-90,lte=90"`
	MountainLon  float64 `envconfig:"MOUNTAIN_LON" default:"-105.6438" validate:"gte=-180,lte=180"`
	TimeZone     string  `envconfig:"SITE_TIMEZONE" default:"America/Denver" validate:"required"`
}

// CriteriaConfig points at an optional YAML file of threshold overrides.
type CriteriaConfig struct {
	File string `envconfig:"CRITERIA_FILE"`

	// Overrides is populated from File by the loader.
	Overrides *types.CriteriaOverrides `ignored:"true"`
}

// WeatherConfig configures the forecast provider client.
type WeatherConfig struct {
	BaseURL    string        `envconfig:"WEATHER_BASE_URL" default:"https://api.open-meteo.com" validate:"required,url"`
	Timeout    time.Duration `envconfig:"WEATHER_TIMEOUT" default:"15s"`
	MaxRetries int           `envconfig:"WEATHER_MAX_RETRIES" default:"2" validate:"gte=0,lte=10"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-west-2"`

	// Empty disables alert scheduling.
	NotificationQueue string        `envconfig:"SQS_NOTIFICATIONS" validate:"omitempty,url"`
	NotificationLead  time.Duration `envconfig:"NOTIFICATION_LEAD_TIME" default:"30m"`

	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Katabatic"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// DefaultUpdateThreshold is the same-day update threshold used when
// TRACKER_UPDATE_THRESHOLD is unset: 15 points in staging and prod, 10 in
// local and dev.
func DefaultUpdateThreshold(environment string) int {
	switch environment {
	case "staging", "prod":
		return 15
	default:
		return 10
	}
}

// Location loads the site time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Sites.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("config: load time zone %q: %w", c.Sites.TimeZone, err)
	}
	return loc, nil
}

// ValleySite returns the configured valley site.
func (c *Config) ValleySite() types.Site {
	return types.Site{Name: c.Sites.ValleyName, Role: types.SiteValley, Lat: c.Sites.ValleyLat, Lon: c.Sites.ValleyLon}
}

// MountainSite returns the configured mountain reference site.
func (c *Config) MountainSite() types.Site {
	return types.Site{Name: c.Sites.MountainName, Role: types.SiteMountain, Lat: c.Sites.MountainLat, Lon: c.Sites.MountainLon}
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrSecretResolution indicates a failure when resolving secret references.
	ErrSecretResolution ConfigErrorType = "SECRET_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
	// ErrCriteriaFile indicates the criteria override file could not be used.
	ErrCriteriaFile ConfigErrorType = "CRITERIA_FILE"
)
