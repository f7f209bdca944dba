package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"katabatic/internal/types"
)

// ============================================================
// Mock Store
// ============================================================

type mockStore struct {
	mu      sync.Mutex
	data    map[string]string
	getErr  error
	setErr  error
	delErr  error
	setCall int
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string)}
}

func (m *mockStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mockStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCall++
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *mockStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delErr != nil {
		return m.delErr
	}
	delete(m.data, key)
	return nil
}

// ============================================================
// Helpers
// ============================================================

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func newTestTracker(t *testing.T, store *mockStore) (*Tracker, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)}
	tr, err := New(Config{
		Store:           store,
		UpdateThreshold: 15,
		Now:             clock.Now,
	})
	require.NoError(t, err)
	return tr, clock
}

func date(y int, m time.Month, d int) types.CalendarDate {
	return types.CalendarDate{Year: y, Month: m, Day: d}
}

func prediction(prob int) types.Prediction {
	return types.Prediction{
		Probability:    prob,
		ConfidenceTier: types.ConfidenceMedium,
		Recommendation: types.RecommendMaybe,
	}
}

func outcome(success bool) types.Outcome {
	speed := 4.0
	if success {
		speed = 14.0
	}
	return types.Outcome{
		ObservedAt:      time.Date(2026, 10, 17, 14, 0, 0, 0, time.UTC),
		ActualWindSpeed: speed,
		Success:         success,
		Source:          "manual",
	}
}

// ============================================================
// Construction
// ============================================================

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	tr, err := New(Config{Store: newMockStore()})
	require.NoError(t, err)
	assert.Equal(t, DefaultUpdateThreshold, tr.UpdateThreshold())
	assert.Equal(t, DefaultMaxEntries, tr.maxN)
	assert.Equal(t, DefaultStorageKey, tr.key)
}

// ============================================================
// LogPrediction
// ============================================================

func TestLogPrediction_NewDate(t *testing.T) {
	store := newMockStore()
	tr, _ := newTestTracker(t, store)
	ctx := context.Background()

	id, err := tr.LogPrediction(ctx, date(2026, 10, 18), prediction(72), nil)
	require.NoError(t, err)
	assert.Contains(t, id, "2026-10-18_")

	entries := tr.Entries(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, 72, entries[0].Prediction.Probability)
	assert.Nil(t, entries[0].Outcome)
}

func TestLogPrediction_RequiresDate(t *testing.T) {
	tr, _ := newTestTracker(t, newMockStore())
	_, err := tr.LogPrediction(context.Background(), types.CalendarDate{}, prediction(50), nil)
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrCodeValidationInvalidDate))
}

func TestLogPrediction_SameDayBelowThresholdIsNoop(t *testing.T) {
	store := newMockStore()
	tr, _ := newTestTracker(t, store)
	ctx := context.Background()
	target := date(2026, 10, 18)

	id1, err := tr.LogPrediction(ctx, target, prediction(60), nil)
	require.NoError(t, err)
	writes := store.setCall

	id2, err := tr.LogPrediction(ctx, target, prediction(74), nil)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, writes, store.setCall, "no write expected below threshold")
	entries := tr.Entries(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, 60, entries[0].Prediction.Probability)
}

func TestLogPrediction_SameDayAtThresholdUpdates(t *testing.T) {
	store := newMockStore()
	tr, _ := newTestTracker(t, store)
	ctx := context.Background()
	target := date(2026, 10, 18)

	id1, err := tr.LogPrediction(ctx, target, prediction(60), nil)
	require.NoError(t, err)
	first := tr.Entries(ctx)[0].CreatedAt

	id2, err := tr.LogPrediction(ctx, target, prediction(45), &types.WeatherConditions{TemperatureC: 3})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	entries := tr.Entries(ctx)
	require.Len(t, entries, 1, "at most one entry per date")
	assert.Equal(t, 45, entries[0].Prediction.Probability)
	assert.True(t, entries[0].CreatedAt.After(first))
	require.NotNil(t, entries[0].Conditions)
	assert.Equal(t, 3.0, entries[0].Conditions.TemperatureC)
}

func TestLogPrediction_DevThreshold(t *testing.T) {
	tr, err := New(Config{Store: newMockStore(), UpdateThreshold: DevUpdateThreshold})
	require.NoError(t, err)
	ctx := context.Background()
	target := date(2026, 10, 18)

	_, err = tr.LogPrediction(ctx, target, prediction(60), nil)
	require.NoError(t, err)
	_, err = tr.LogPrediction(ctx, target, prediction(70), nil)
	require.NoError(t, err)

	assert.Equal(t, 70, tr.Entries(ctx)[0].Prediction.Probability)
}

func TestLogPrediction_Retention(t *testing.T) {
	tr, _ := newTestTracker(t, newMockStore())
	ctx := context.Background()
	start := date(2026, 1, 1)

	for i := 0; i < 105; i++ {
		_, err := tr.LogPrediction(ctx, start.AddDays(i), prediction(i%100), nil)
		require.NoError(t, err)
	}

	entries := tr.Entries(ctx)
	require.Len(t, entries, 100)
	assert.Equal(t, start.AddDays(5), entries[0].TargetDate, "oldest five dates dropped")
	assert.Equal(t, start.AddDays(104), entries[99].TargetDate)
}

func TestLogPrediction_WriteErrorSurfaces(t *testing.T) {
	store := newMockStore()
	store.setErr = errors.New("disk full")
	tr, _ := newTestTracker(t, store)

	_, err := tr.LogPrediction(context.Background(), date(2026, 10, 18), prediction(50), nil)
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrCodeInternalStoreWrite))
}

// ============================================================
// Read failures
// ============================================================

func TestEntries_ReadErrorIsEmpty(t *testing.T) {
	store := newMockStore()
	store.getErr = errors.New("connection refused")
	tr, _ := newTestTracker(t, store)

	assert.Empty(t, tr.Entries(context.Background()))
	report := tr.AccuracyReport(context.Background())
	assert.Equal(t, 0, report.TotalLogged)
}

func TestEntries_CorruptBlobIsEmpty(t *testing.T) {
	store := newMockStore()
	store.data[DefaultStorageKey] = "{not json"
	tr, _ := newTestTracker(t, store)
	ctx := context.Background()

	assert.Empty(t, tr.Entries(ctx))

	// Logging over a corrupt blob starts a fresh collection.
	_, err := tr.LogPrediction(ctx, date(2026, 10, 18), prediction(50), nil)
	require.NoError(t, err)
	assert.Len(t, tr.Entries(ctx), 1)
}

func TestEntries_DropsMalformedEntries(t *testing.T) {
	store := newMockStore()
	store.data[DefaultStorageKey] = `[
		{"id":"2026-10-18_1","timestamp":"2026-10-17T12:00:00Z","target_date":"2026-10-18","prediction":{"probability":55}},
		{"id":"","timestamp":"2026-10-17T12:00:00Z","target_date":"2026-10-19","prediction":{"probability":55}},
		{"id":"2026-10-20_1","timestamp":"2026-10-17T12:00:00Z","target_date":"2026-10-20","prediction":{"probability":140}}
	]`
	tr, _ := newTestTracker(t, store)

	entries := tr.Entries(context.Background())
	require.Len(t, entries, 1)
	assert.Equal(t, "2026-10-18_1", entries[0].ID)
}

// ============================================================
// UpdateOutcome
// ============================================================

func TestUpdateOutcome_AccuracyIncrementsByOne(t *testing.T) {
	tr, _ := newTestTracker(t, newMockStore())
	ctx := context.Background()

	id, err := tr.LogPrediction(ctx, date(2026, 10, 18), prediction(80), nil)
	require.NoError(t, err)

	before := tr.AccuracyReport(ctx)
	require.NoError(t, tr.UpdateOutcome(ctx, id, outcome(true)))
	after := tr.AccuracyReport(ctx)

	assert.Equal(t, before.CorrectPredictions+1, after.CorrectPredictions)
	assert.Equal(t, before.FalsePositives, after.FalsePositives)
	assert.Equal(t, before.FalseNegatives, after.FalseNegatives)
}

func TestUpdateOutcome_ReplacesExisting(t *testing.T) {
	tr, _ := newTestTracker(t, newMockStore())
	ctx := context.Background()

	id, err := tr.LogPrediction(ctx, date(2026, 10, 18), prediction(80), nil)
	require.NoError(t, err)
	require.NoError(t, tr.UpdateOutcome(ctx, id, outcome(true)))
	require.NoError(t, tr.UpdateOutcome(ctx, id, outcome(false)))

	entry, err := tr.Entry(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, entry.Outcome)
	assert.False(t, entry.Outcome.Success)
}

func TestUpdateOutcome_NotFound(t *testing.T) {
	tr, _ := newTestTracker(t, newMockStore())

	err := tr.UpdateOutcome(context.Background(), "2026-10-18_404", outcome(true))
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrCodeNotFoundPrediction))
}

func TestUpdateOutcome_WriteErrorSurfaces(t *testing.T) {
	store := newMockStore()
	tr, _ := newTestTracker(t, store)
	ctx := context.Background()

	id, err := tr.LogPrediction(ctx, date(2026, 10, 18), prediction(80), nil)
	require.NoError(t, err)

	store.setErr = errors.New("timeout")
	err = tr.UpdateOutcome(ctx, id, outcome(true))
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrCodeInternalStoreWrite))
}

func TestPendingOutcomes(t *testing.T) {
	tr, _ := newTestTracker(t, newMockStore())
	ctx := context.Background()

	id1, err := tr.LogPrediction(ctx, date(2026, 10, 15), prediction(80), nil)
	require.NoError(t, err)
	_, err = tr.LogPrediction(ctx, date(2026, 10, 16), prediction(30), nil)
	require.NoError(t, err)
	_, err = tr.LogPrediction(ctx, date(2026, 10, 18), prediction(30), nil)
	require.NoError(t, err)
	require.NoError(t, tr.UpdateOutcome(ctx, id1, outcome(true)))

	pending := tr.PendingOutcomes(ctx, date(2026, 10, 17))
	require.Len(t, pending, 1)
	assert.Equal(t, date(2026, 10, 16), pending[0].TargetDate)
}

// ============================================================
// AccuracyReport
// ============================================================

func TestAccuracyReport_Counts(t *testing.T) {
	tr, _ := newTestTracker(t, newMockStore())
	ctx := context.Background()
	start := date(2026, 9, 1)

	cases := []struct {
		prob    int
		success bool
	}{
		{80, true},  // correct
		{75, false}, // false positive
		{30, true},  // false negative
		{20, false}, // correct
		{50, true},  // correct, boundary counts as good
	}
	for i, c := range cases {
		id, err := tr.LogPrediction(ctx, start.AddDays(i), prediction(c.prob), nil)
		require.NoError(t, err)
		require.NoError(t, tr.UpdateOutcome(ctx, id, outcome(c.success)))
	}
	_, err := tr.LogPrediction(ctx, start.AddDays(10), prediction(90), nil)
	require.NoError(t, err)

	report := tr.AccuracyReport(ctx)
	assert.Equal(t, 6, report.TotalLogged)
	assert.Equal(t, 5, report.TotalPredictions)
	assert.Equal(t, 3, report.CorrectPredictions)
	assert.Equal(t, 1, report.FalsePositives)
	assert.Equal(t, 1, report.FalseNegatives)
	assert.InDelta(t, 60.0, report.Accuracy, 0.01)
}

func TestAccuracyReport_CalibrationBand(t *testing.T) {
	tr, _ := newTestTracker(t, newMockStore())
	ctx := context.Background()
	start := date(2026, 9, 1)

	for i := 0; i < 10; i++ {
		id, err := tr.LogPrediction(ctx, start.AddDays(i), prediction(85), nil)
		require.NoError(t, err)
		require.NoError(t, tr.UpdateOutcome(ctx, id, outcome(i < 8)))
	}

	report := tr.AccuracyReport(ctx)
	require.Len(t, report.Calibration, 1)
	band := report.Calibration[0]
	assert.Equal(t, "80-89", band.Band)
	assert.Equal(t, 80, band.Lower)
	assert.Equal(t, 10, band.Count)
	assert.InDelta(t, 85.0, band.MeanConfidence, 0.01)
	assert.InDelta(t, 80.0, band.SuccessRate, 0.01)
}

func TestAccuracyReport_Empty(t *testing.T) {
	tr, _ := newTestTracker(t, newMockStore())
	report := tr.AccuracyReport(context.Background())
	assert.Equal(t, 0, report.TotalPredictions)
	assert.Zero(t, report.Accuracy)
	assert.NotNil(t, report.Calibration)
}

// ============================================================
// Trends
// ============================================================

func TestTrends_WindowAndRepresentative(t *testing.T) {
	store := newMockStore()
	tr, _ := newTestTracker(t, store)
	ctx := context.Background()
	today := tr.Today()

	old, err := tr.LogPrediction(ctx, today.AddDays(-20), prediction(90), nil)
	require.NoError(t, err)
	require.NoError(t, tr.UpdateOutcome(ctx, old, outcome(true)))

	recent, err := tr.LogPrediction(ctx, today.AddDays(-2), prediction(80), nil)
	require.NoError(t, err)
	require.NoError(t, tr.UpdateOutcome(ctx, recent, outcome(false)))

	_, err = tr.LogPrediction(ctx, today, prediction(40), nil)
	require.NoError(t, err)

	report := tr.Trends(ctx, 7)
	assert.Equal(t, 7, report.Days)
	require.Len(t, report.Points, 2)

	assert.Equal(t, today.AddDays(-2), report.Points[0].Date)
	require.NotNil(t, report.Points[0].ActualSuccess)
	assert.False(t, *report.Points[0].ActualSuccess)
	require.NotNil(t, report.Points[0].Accurate)
	assert.False(t, *report.Points[0].Accurate)

	assert.Equal(t, today, report.Points[1].Date)
	assert.Nil(t, report.Points[1].ActualSuccess)
	assert.Nil(t, report.Points[1].Accurate)

	assert.Equal(t, 1, report.Summary.Total)
	assert.Equal(t, 0, report.Summary.Accurate)
	assert.Zero(t, report.Summary.AccuracyRate)
}

func TestTrends_DefaultDays(t *testing.T) {
	tr, _ := newTestTracker(t, newMockStore())
	report := tr.Trends(context.Background(), 0)
	assert.Equal(t, DefaultTrendDays, report.Days)
	assert.Empty(t, report.Points)
}

// ============================================================
// Deduplicate / Clear
// ============================================================

func TestDeduplicate_KeepsMostRecent(t *testing.T) {
	store := newMockStore()
	tr, _ := newTestTracker(t, store)
	ctx := context.Background()

	// Seed duplicates directly, bypassing the per-date policy.
	codec := NewCodec(false)
	d := date(2026, 10, 18)
	base := time.Date(2026, 10, 17, 6, 0, 0, 0, time.UTC)
	blob, err := codec.Encode([]types.PredictionEntry{
		{ID: "a", CreatedAt: base, TargetDate: d, Prediction: prediction(40)},
		{ID: "b", CreatedAt: base.Add(2 * time.Hour), TargetDate: d, Prediction: prediction(70)},
		{ID: "c", CreatedAt: base.Add(time.Hour), TargetDate: d, Prediction: prediction(55)},
		{ID: "d", CreatedAt: base, TargetDate: d.AddDays(1), Prediction: prediction(20)},
	})
	require.NoError(t, err)
	store.data[DefaultStorageKey] = blob

	result, err := tr.Deduplicate(ctx)
	require.NoError(t, err)
	assert.Equal(t, DedupResult{Removed: 2, Kept: 2}, result)

	entries := tr.Entries(ctx)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].ID)
	assert.Equal(t, "d", entries[1].ID)
}

func TestDeduplicate_NothingToDoSkipsWrite(t *testing.T) {
	store := newMockStore()
	tr, _ := newTestTracker(t, store)
	ctx := context.Background()

	_, err := tr.LogPrediction(ctx, date(2026, 10, 18), prediction(40), nil)
	require.NoError(t, err)
	writes := store.setCall

	result, err := tr.Deduplicate(ctx)
	require.NoError(t, err)
	assert.Equal(t, DedupResult{Removed: 0, Kept: 1}, result)
	assert.Equal(t, writes, store.setCall)
}

func TestClear(t *testing.T) {
	store := newMockStore()
	tr, _ := newTestTracker(t, store)
	ctx := context.Background()

	_, err := tr.LogPrediction(ctx, date(2026, 10, 18), prediction(40), nil)
	require.NoError(t, err)
	require.NoError(t, tr.Clear(ctx))
	assert.Empty(t, tr.Entries(ctx))
}

func TestClear_WriteErrorSurfaces(t *testing.T) {
	store := newMockStore()
	store.delErr = errors.New("read-only")
	tr, _ := newTestTracker(t, store)

	err := tr.Clear(context.Background())
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrCodeInternalStoreWrite))
}

// ============================================================
// Concurrency
// ============================================================

func TestLogPrediction_ConcurrentDistinctDates(t *testing.T) {
	tr, err := New(Config{Store: newMockStore()})
	require.NoError(t, err)
	ctx := context.Background()
	start := date(2026, 1, 1)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := tr.LogPrediction(ctx, start.AddDays(i), prediction(50), nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, tr.Entries(ctx), 20, "no lost updates within one process")
}

// ============================================================
// Codec
// ============================================================

func TestCodec_CompressedRoundTrip(t *testing.T) {
	codec := NewCodec(true)
	in := []types.PredictionEntry{
		{ID: "x", CreatedAt: time.Date(2026, 10, 17, 6, 0, 0, 0, time.UTC), TargetDate: date(2026, 10, 18), Prediction: prediction(66)},
	}
	blob, err := codec.Encode(in)
	require.NoError(t, err)
	assert.Contains(t, blob, zstdPrefix)

	out, err := codec.Decode(blob)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "x", out[0].ID)
	assert.Equal(t, date(2026, 10, 18), out[0].TargetDate)

	// A plain codec still reads compressed blobs.
	out, err = NewCodec(false).Decode(blob)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestCodec_EmptyBlob(t *testing.T) {
	out, err := NewCodec(false).Decode("  ")
	require.NoError(t, err)
	assert.Nil(t, out)
}

// ============================================================
// OutcomeFromSamples
// ============================================================

func TestOutcomeFromSamples(t *testing.T) {
	now := time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC)
	samples := []types.WeatherPoint{
		{WindSpeedMS: 5, WindDirectionDeg: 350},
		{WindSpeedMS: 5, WindDirectionDeg: 10},
	}

	o, err := OutcomeFromSamples(samples, "", now)
	require.NoError(t, err)
	assert.InDelta(t, 11.2, o.ActualWindSpeed, 0.01)
	assert.True(t, o.Success)
	assert.Equal(t, 2, o.SampleCount)
	assert.Equal(t, "observation", o.Source)
	assert.Equal(t, now, o.ObservedAt)
	// Circular mean of 350° and 10° is north.
	assert.True(t, o.ActualWindDirection == 0 || o.ActualWindDirection == 360)
}

func TestOutcomeFromSamples_Calm(t *testing.T) {
	o, err := OutcomeFromSamples([]types.WeatherPoint{
		{WindSpeedMS: 1, WindDirectionDeg: 180},
		{WindSpeedMS: 3, WindDirectionDeg: 180},
	}, "open-meteo", time.Now())
	require.NoError(t, err)
	assert.False(t, o.Success)
	assert.InDelta(t, 2.2, o.MinWindSpeed, 0.01)
	assert.InDelta(t, 6.7, o.MaxWindSpeed, 0.01)
	assert.Equal(t, 180.0, o.ActualWindDirection)
}

func TestOutcomeFromSamples_Empty(t *testing.T) {
	_, err := OutcomeFromSamples(nil, "x", time.Now())
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrCodeValidationNoSamples))
}
