package main

import (
	"context"
	"fmt"
	"time"

	"katabatic/internal/types"
)

// ValidationResult holds the outcome of one check.
type ValidationResult struct {
	Valid bool
	// Message says what was verified, or why the check failed.
	Message string
}

// checkTimeout is the per-check bound for calls that leave the process.
const checkTimeout = 15 * time.Second

// probeKey is written and removed by CheckStore.
const probeKey = "katabatic_preflight_probe"

// KV is the store surface CheckStore exercises.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// PairFetcher is the forecast surface CheckForecast exercises.
type PairFetcher interface {
	FetchPair(ctx context.Context, from, to types.CalendarDate) (types.ForecastPair, error)
}

// CheckCriteria validates the effective thresholds.
func CheckCriteria(c types.Criteria) ValidationResult {
	if err := c.Validate(); err != nil {
		return ValidationResult{Valid: false, Message: err.Error()}
	}
	return ValidationResult{
		Valid:   true,
		Message: fmt.Sprintf("prediction window %s, clear sky window %s", c.PredictionWindow, c.ClearSkyWindow),
	}
}

// CheckStore writes, reads back and removes a probe value.
func CheckStore(ctx context.Context, kv KV) ValidationResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	want := time.Now().UTC().Format(time.RFC3339Nano)
	if err := kv.Set(ctx, probeKey, want); err != nil {
		return ValidationResult{Valid: false, Message: fmt.Sprintf("write failed: %v", err)}
	}
	got, found, err := kv.Get(ctx, probeKey)
	if err != nil {
		return ValidationResult{Valid: false, Message: fmt.Sprintf("read failed: %v", err)}
	}
	if !found || got != want {
		return ValidationResult{Valid: false, Message: "probe value did not round-trip"}
	}
	if err := kv.Remove(ctx, probeKey); err != nil {
		return ValidationResult{Valid: false, Message: fmt.Sprintf("remove failed: %v", err)}
	}
	return ValidationResult{Valid: true, Message: "write, read and remove succeeded"}
}

// CheckForecast fetches the pair for target and requires hourly data for
// both sites.
func CheckForecast(ctx context.Context, f PairFetcher, target types.CalendarDate) ValidationResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	pair, err := f.FetchPair(ctx, target, target)
	if err != nil {
		return ValidationResult{Valid: false, Message: fmt.Sprintf("fetch failed: %v", err)}
	}
	if len(pair.Valley.Hourly) == 0 || len(pair.Mountain.Hourly) == 0 {
		return ValidationResult{
			Valid: false,
			Message: fmt.Sprintf("empty hourly series (valley=%d, mountain=%d)",
				len(pair.Valley.Hourly), len(pair.Mountain.Hourly)),
		}
	}
	return ValidationResult{
		Valid: true,
		Message: fmt.Sprintf("%s: %s %d points, %s %d points", target,
			pair.Valley.Name, len(pair.Valley.Hourly), pair.Mountain.Name, len(pair.Mountain.Hourly)),
	}
}
