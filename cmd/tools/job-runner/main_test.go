package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"katabatic/internal/scheduler"
)

func TestBuildPayload(t *testing.T) {
	p, err := buildPayload("verify_outcomes", "2026-10-18T15:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, scheduler.TaskVerifyOutcomes, p.Task)
	require.NotNil(t, p.ReferenceTime)
	assert.Equal(t, 15, p.ReferenceTime.Hour())

	p, err = buildPayload("dawn_analysis", "")
	require.NoError(t, err)
	assert.Nil(t, p.ReferenceTime)

	_, err = buildPayload("", "")
	assert.ErrorContains(t, err, "--task is required")

	_, err = buildPayload("trigger_digests", "")
	assert.ErrorContains(t, err, "unknown task type")

	_, err = buildPayload("deduplicate", "yesterday")
	assert.ErrorContains(t, err, "invalid --reference-time")
}

func TestPrintPayload(t *testing.T) {
	p, err := buildPayload("deduplicate", "2026-10-18T09:00:00Z")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printPayload(&buf, p))
	assert.JSONEq(t, `{"task":"deduplicate","reference_time":"2026-10-18T09:00:00Z"}`, buf.String())
}

func TestPrintAvailableTasks(t *testing.T) {
	var buf bytes.Buffer
	printAvailableTasks(&buf)
	out := buf.String()
	for task := range scheduler.Tasks {
		assert.Contains(t, out, string(task))
	}
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("dawn_analysis")), bytes.Index(buf.Bytes(), []byte("verify_outcomes")))
}
