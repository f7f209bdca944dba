package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"katabatic/internal/tracker"
)

// Tasks lists every TaskType the Runner dispatches, with a short
// description for operator tooling.
var Tasks = map[TaskType]string{
	TaskDawnAnalysis:   "Analyze the next dawn, log the prediction, schedule a go alert",
	TaskVerifyOutcomes: "Attach observed outcomes to predictions whose window has passed",
	TaskDeduplicate:    "Collapse prediction history to one entry per date",
}

// DawnJob runs the pre-dawn analysis.
type DawnJob interface {
	Run(ctx context.Context, now time.Time) (DawnResult, error)
}

// VerificationJob runs outcome verification.
type VerificationJob interface {
	Run(ctx context.Context, now time.Time) (VerificationResult, error)
}

// Deduplicator collapses the prediction history.
type Deduplicator interface {
	Deduplicate(ctx context.Context) (tracker.DedupResult, error)
}

// Runner routes a Payload to the job it names. It is the body of the
// scheduled Lambda and of the local job-runner tool.
type Runner struct {
	Dawn   DawnJob
	Verify VerificationJob
	Dedup  Deduplicator
	Logger *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Handle runs the task named in payload and returns a one-line summary.
func (r *Runner) Handle(ctx context.Context, payload Payload) (string, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}
	if payload.ReferenceTime != nil {
		now = *payload.ReferenceTime
	}

	task := string(payload.Task)
	if payload.Task == "" {
		return "", fmt.Errorf("empty task type in payload")
	}
	logger.InfoContext(ctx, "scheduled task invoked",
		"task", task,
		"reference_time", now.UTC().Format(time.RFC3339),
	)

	summary, err := r.dispatch(ctx, payload.Task, now)
	if err != nil {
		logger.ErrorContext(ctx, "task execution failed", "task", task, "error", err)
		return summary, fmt.Errorf("task %s failed: %w", task, err)
	}
	logger.InfoContext(ctx, "task complete", "task", task, "summary", summary)
	return summary, nil
}

func (r *Runner) dispatch(ctx context.Context, task TaskType, now time.Time) (string, error) {
	switch task {
	case TaskDawnAnalysis:
		if r.Dawn == nil {
			return "", fmt.Errorf("dawn analysis is not configured")
		}
		res, err := r.Dawn.Run(ctx, now)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s: %d%% %s (stored=%t, alert=%q)",
			res.TargetDate, res.Prediction.Probability, res.Prediction.Recommendation,
			res.Stored, res.NotificationID), nil

	case TaskVerifyOutcomes:
		if r.Verify == nil {
			return "", fmt.Errorf("outcome verification is not configured")
		}
		res, err := r.Verify.Run(ctx, now)
		summary := fmt.Sprintf("verified=%d skipped=%d failed=%d", res.Verified, res.Skipped, res.Failed)
		return summary, err

	case TaskDeduplicate:
		if r.Dedup == nil {
			return "", fmt.Errorf("deduplication is not configured")
		}
		res, err := r.Dedup.Deduplicate(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("removed=%d kept=%d", res.Removed, res.Kept), nil

	default:
		return "", fmt.Errorf("unknown task type: %q", task)
	}
}
