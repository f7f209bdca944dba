package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"katabatic/internal/scheduler"
	"katabatic/internal/tracker"
)

type countingDedup struct{ calls int }

func (c *countingDedup) Deduplicate(context.Context) (tracker.DedupResult, error) {
	c.calls++
	return tracker.DedupResult{Kept: 3}, nil
}

func TestHandle_DecodesScheduleEvent(t *testing.T) {
	var payload scheduler.Payload
	require.NoError(t, json.Unmarshal([]byte(`{"task":"deduplicate","reference_time":"2026-10-18T09:00:00Z"}`), &payload))
	require.NotNil(t, payload.ReferenceTime)
	assert.True(t, time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC).Equal(*payload.ReferenceTime))

	dedup := &countingDedup{}
	h := &Handler{Runner: &scheduler.Runner{Dedup: dedup}}
	summary, err := h.Handle(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "removed=0 kept=3", summary)
	assert.Equal(t, 1, dedup.calls)
}

func TestHandle_UnknownTask(t *testing.T) {
	h := &Handler{Runner: &scheduler.Runner{}}
	_, err := h.Handle(context.Background(), scheduler.Payload{Task: "archive_history"})
	assert.ErrorContains(t, err, "unknown task type")
}
