package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"katabatic/internal/config"
	"katabatic/internal/scheduler"
	"katabatic/internal/types"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "local",
		Service:     "katabatic",
		LogLevel:    "info",
		Store:       config.StoreConfig{Backend: "memory"},
		Tracker:     config.TrackerConfig{MaxEntries: 100, StorageKey: "katabatic_predictions"},
		Sites: config.SitesConfig{
			ValleyName: "Morrison", ValleyLat: 39.6536, ValleyLon: -105.1911,
			MountainName: "Mount Blue Sky", MountainLat: 39.5883, MountainLon: -105.6438,
			TimeZone: "UTC",
		},
		Weather: config.WeatherConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second},
		AWS:     config.AWSConfig{Region: "us-west-2"},
	}
}

func TestNew_WiresComponents(t *testing.T) {
	a, err := New(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Equal(t, time.UTC, a.Location)
	assert.Equal(t, 10, a.Tracker.UpdateThreshold(), "local environment default")
	assert.Equal(t, types.DefaultCriteria(), a.Analyzer.Criteria())

	id, err := a.Tracker.LogPrediction(context.Background(), types.CalendarDate{Year: 2026, Month: 10, Day: 18},
		types.Prediction{Probability: 40, ConfidenceTier: types.ConfidenceLow, Recommendation: types.RecommendSkip}, nil)
	require.NoError(t, err)
	found, ok, err := a.Store.Get(context.Background(), "katabatic_predictions")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, found, id)
}

func TestNew_AppliesCriteriaOverrides(t *testing.T) {
	cfg := testConfig()
	maxPrecip := 35.0
	cfg.Criteria.Overrides = &types.CriteriaOverrides{MaxPrecipitationProbability: &maxPrecip}
	cfg.Tracker.UpdateThreshold = 25

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Equal(t, 35.0, a.Analyzer.Criteria().MaxPrecipitationProbability)
	assert.Equal(t, 25, a.Tracker.UpdateThreshold())
}

func TestNew_Errors(t *testing.T) {
	_, err := New(context.Background(), nil, nil)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.Sites.TimeZone = "Mars/Olympus_Mons"
	_, err = New(context.Background(), cfg, nil)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Store.Backend = "redis"
	_, err = New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestLoadAWS_DisabledSkipsConfig(t *testing.T) {
	a, err := New(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	clients, err := a.LoadAWS(context.Background())
	require.NoError(t, err)
	assert.Nil(t, clients.Notifier)
	assert.Nil(t, clients.Metrics)
}

func TestRunner_Dedup(t *testing.T) {
	a, err := New(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	r, err := a.Runner(AWSClients{})
	require.NoError(t, err)
	assert.NotNil(t, r.Dawn)
	assert.NotNil(t, r.Verify)

	summary, err := r.Handle(context.Background(), scheduler.Payload{Task: scheduler.TaskDeduplicate})
	require.NoError(t, err)
	assert.Equal(t, "removed=0 kept=0", summary)
}
