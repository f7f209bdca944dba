// Package tracker persists katabatic predictions, attaches observed outcomes,
// and reports accuracy and calibration over the recorded history.
//
// The whole collection lives in one string blob under a single key of a
// key-value store. Every state change is a read-modify-write of that blob:
//
//	Get(key) -> decode -> mutate -> encode -> Set(key)
//
// Read failures (missing store, corrupt blob) are logged and treated as an
// empty collection so that the tracker stays usable on a cold store. Write
// failures are returned to the caller on state-changing operations.
//
// Within one process the read-modify-write sequences are serialized by a
// mutex. Several processes writing to the same shared store can still lose
// updates; deployments must keep a single writer per storage key.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"katabatic/internal/types"
)

// Defaults for Config.
const (
	DefaultStorageKey      = "katabatic_predictions"
	DefaultMaxEntries      = 100
	DefaultUpdateThreshold = 15
	DevUpdateThreshold     = 10
)

// Store is the key-value persistence collaborator.
type Store interface {
	// Get returns the value under key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Config configures a Tracker.
type Config struct {
	Store Store

	// UpdateThreshold is the minimum probability change (in points) for a
	// same-day prediction to replace the stored one.
	UpdateThreshold int
	// MaxEntries caps the stored collection; the oldest dates drop first.
	MaxEntries int
	StorageKey string
	// Location is the reference zone for calendar dates.
	Location *time.Location
	// Compress writes the blob zstd-compressed.
	Compress bool

	Now    func() time.Time
	Logger *slog.Logger
}

// Tracker records predictions and their outcomes.
type Tracker struct {
	store     Store
	codec     *Codec
	key       string
	threshold int
	maxN      int
	loc       *time.Location
	now       func() time.Time
	logger    *slog.Logger

	mu sync.Mutex
}

// New creates a Tracker. A nil Store is a programming error.
func New(cfg Config) (*Tracker, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("tracker: store must not be nil")
	}
	t := &Tracker{
		store:     cfg.Store,
		codec:     NewCodec(cfg.Compress),
		key:       cfg.StorageKey,
		threshold: cfg.UpdateThreshold,
		maxN:      cfg.MaxEntries,
		loc:       cfg.Location,
		now:       cfg.Now,
		logger:    cfg.Logger,
	}
	if t.key == "" {
		t.key = DefaultStorageKey
	}
	if t.threshold <= 0 {
		t.threshold = DefaultUpdateThreshold
	}
	if t.maxN <= 0 {
		t.maxN = DefaultMaxEntries
	}
	if t.loc == nil {
		t.loc = time.UTC
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t, nil
}

// Today returns the current calendar date in the tracker's reference zone.
func (t *Tracker) Today() types.CalendarDate {
	return types.DateOf(t.now(), t.loc)
}

// UpdateThreshold returns the configured same-day update threshold.
func (t *Tracker) UpdateThreshold() int {
	return t.threshold
}

// LogPrediction records a prediction for target. If an entry for the same
// calendar date exists, it is updated only when the probability moved by at
// least the update threshold; otherwise it is left untouched. Either way the
// id of the entry holding the date is returned.
func (t *Tracker) LogPrediction(ctx context.Context, target types.CalendarDate, p types.Prediction, conditions *types.WeatherConditions) (string, error) {
	if target.IsZero() {
		return "", types.NewAppError(types.ErrCodeValidationInvalidDate, "target date is required", nil)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	entries := t.load(ctx)
	now := t.now()

	if idx := latestForDate(entries, target); idx >= 0 {
		existing := &entries[idx]
		delta := absInt(existing.Prediction.Probability - p.Probability)
		if delta < t.threshold {
			t.logger.InfoContext(ctx, "prediction unchanged for date",
				"target_date", target.String(),
				"id", existing.ID,
				"delta", delta,
				"threshold", t.threshold,
			)
			return existing.ID, nil
		}

		existing.Prediction = p
		existing.Conditions = conditions
		existing.CreatedAt = now
		if err := t.save(ctx, entries); err != nil {
			return "", err
		}
		t.logger.InfoContext(ctx, "prediction updated for date",
			"target_date", target.String(),
			"id", existing.ID,
			"delta", delta,
			"probability", p.Probability,
		)
		return existing.ID, nil
	}

	entry := types.PredictionEntry{
		ID:         fmt.Sprintf("%s_%d", target.String(), now.UnixMilli()),
		CreatedAt:  now,
		TargetDate: target,
		Prediction: p,
		Conditions: conditions,
	}
	entries = append(entries, entry)
	entries = t.retain(ctx, entries)
	if err := t.save(ctx, entries); err != nil {
		return "", err
	}

	t.logger.InfoContext(ctx, "prediction logged",
		"target_date", target.String(),
		"id", entry.ID,
		"probability", p.Probability,
		"recommendation", string(p.Recommendation),
	)
	return entry.ID, nil
}

// UpdateOutcome attaches (or replaces) the observed outcome of an entry.
func (t *Tracker) UpdateOutcome(ctx context.Context, id string, outcome types.Outcome) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := t.load(ctx)
	idx := -1
	for i := range entries {
		if entries[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return types.NewAppErrorWithDetails(types.ErrCodeNotFoundPrediction,
			"prediction not found", nil, map[string]any{"id": id})
	}

	o := outcome
	entries[idx].Outcome = &o
	if err := t.save(ctx, entries); err != nil {
		return err
	}

	t.logger.InfoContext(ctx, "outcome recorded",
		"id", id,
		"success", outcome.Success,
		"source", outcome.Source,
		"sample_count", outcome.SampleCount,
	)
	return nil
}

// Entries returns the stored collection ordered by target date.
func (t *Tracker) Entries(ctx context.Context) []types.PredictionEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(ctx)
}

// Entry returns the entry with the given id.
func (t *Tracker) Entry(ctx context.Context, id string) (types.PredictionEntry, error) {
	for _, e := range t.Entries(ctx) {
		if e.ID == id {
			return e, nil
		}
	}
	return types.PredictionEntry{}, types.NewAppErrorWithDetails(types.ErrCodeNotFoundPrediction,
		"prediction not found", nil, map[string]any{"id": id})
}

// EntryForDate returns the most recently created entry for date.
func (t *Tracker) EntryForDate(ctx context.Context, date types.CalendarDate) (types.PredictionEntry, bool) {
	entries := t.Entries(ctx)
	if idx := latestForDate(entries, date); idx >= 0 {
		return entries[idx], true
	}
	return types.PredictionEntry{}, false
}

// PendingOutcomes returns entries for dates up to and including through
// that still have no outcome.
func (t *Tracker) PendingOutcomes(ctx context.Context, through types.CalendarDate) []types.PredictionEntry {
	var out []types.PredictionEntry
	for _, e := range t.Entries(ctx) {
		if e.Outcome == nil && e.TargetDate.Compare(through) <= 0 {
			out = append(out, e)
		}
	}
	return out
}

// DedupResult reports what Deduplicate did.
type DedupResult struct {
	Removed int `json:"removed"`
	Kept    int `json:"kept"`
}

// Deduplicate collapses the collection to one entry per date, keeping the
// most recently created one. Nothing is written when there is nothing to
// remove.
func (t *Tracker) Deduplicate(ctx context.Context) (DedupResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := t.load(ctx)
	latest := make(map[types.CalendarDate]types.PredictionEntry, len(entries))
	for _, e := range entries {
		cur, ok := latest[e.TargetDate]
		if !ok || e.CreatedAt.After(cur.CreatedAt) {
			latest[e.TargetDate] = e
		}
	}

	result := DedupResult{Removed: len(entries) - len(latest), Kept: len(latest)}
	if result.Removed == 0 {
		return result, nil
	}

	kept := make([]types.PredictionEntry, 0, len(latest))
	for _, e := range latest {
		kept = append(kept, e)
	}
	sortEntries(kept)
	if err := t.save(ctx, kept); err != nil {
		return DedupResult{}, err
	}

	t.logger.InfoContext(ctx, "prediction history deduplicated",
		"removed", result.Removed,
		"kept", result.Kept,
	)
	return result, nil
}

// Clear removes every stored entry.
func (t *Tracker) Clear(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.store.Remove(ctx, t.key); err != nil {
		t.logger.ErrorContext(ctx, "failed to clear prediction history", "error", err)
		return types.NewAppError(types.ErrCodeInternalStoreWrite, "failed to clear prediction history", err)
	}
	t.logger.InfoContext(ctx, "prediction history cleared")
	return nil
}

// load reads and decodes the collection. Any failure yields an empty
// collection. Entries that fail boundary checks are dropped.
func (t *Tracker) load(ctx context.Context) []types.PredictionEntry {
	blob, found, err := t.store.Get(ctx, t.key)
	if err != nil {
		t.logger.WarnContext(ctx, "prediction store read failed; treating as empty",
			"error", types.NewAppError(types.ErrCodeInternalStoreRead, "store get failed", err),
			"key", t.key,
		)
		return nil
	}
	if !found {
		return nil
	}

	entries, err := t.codec.Decode(blob)
	if err != nil {
		t.logger.WarnContext(ctx, "prediction blob unreadable; treating as empty",
			"error", err,
			"key", t.key,
		)
		return nil
	}

	valid := entries[:0]
	dropped := 0
	for _, e := range entries {
		if e.ID == "" || e.TargetDate.IsZero() ||
			e.Prediction.Probability < 0 || e.Prediction.Probability > 100 {
			dropped++
			continue
		}
		valid = append(valid, e)
	}
	if dropped > 0 {
		t.logger.WarnContext(ctx, "dropped malformed prediction entries", "count", dropped)
	}
	sortEntries(valid)
	return valid
}

func (t *Tracker) save(ctx context.Context, entries []types.PredictionEntry) error {
	blob, err := t.codec.Encode(entries)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalCodec, "failed to encode prediction history", err)
	}
	if err := t.store.Set(ctx, t.key, blob); err != nil {
		t.logger.ErrorContext(ctx, "prediction store write failed",
			"error", err,
			"key", t.key,
			"entries", len(entries),
		)
		return types.NewAppError(types.ErrCodeInternalStoreWrite, "failed to persist prediction history", err)
	}
	return nil
}

// retain sorts by date and drops the oldest entries beyond the cap.
func (t *Tracker) retain(ctx context.Context, entries []types.PredictionEntry) []types.PredictionEntry {
	sortEntries(entries)
	if excess := len(entries) - t.maxN; excess > 0 {
		t.logger.InfoContext(ctx, "trimming prediction history",
			"dropped", excess,
			"oldest_kept", entries[excess].TargetDate.String(),
		)
		entries = entries[excess:]
	}
	return entries
}

// latestForDate returns the index of the most recently created entry for
// date, or -1.
func latestForDate(entries []types.PredictionEntry, date types.CalendarDate) int {
	idx := -1
	for i := range entries {
		if entries[i].TargetDate != date {
			continue
		}
		if idx < 0 || entries[i].CreatedAt.After(entries[idx].CreatedAt) {
			idx = i
		}
	}
	return idx
}

func sortEntries(entries []types.PredictionEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if c := entries[i].TargetDate.Compare(entries[j].TargetDate); c != 0 {
			return c < 0
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}

func absInt(v int) int {
	return int(math.Abs(float64(v)))
}
