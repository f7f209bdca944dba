// Package main is the entrypoint for the scheduled katabatic Lambda.
//
// EventBridge rules send a scheduler.Payload naming the task: the pre-dawn
// analysis in the evening and early morning, outcome verification after the
// window, and a weekly history deduplication. Components are built once per
// cold start and reused across invocations.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"katabatic/internal/app"
	"katabatic/internal/config"
	"katabatic/internal/scheduler"
)

// Handler adapts the Runner to the Lambda signature and logs the invocation
// identity.
type Handler struct {
	Runner *scheduler.Runner
	Logger *slog.Logger
}

// Handle runs one scheduled task.
func (h *Handler) Handle(ctx context.Context, payload scheduler.Payload) (string, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if _, ok := scheduler.Tasks[payload.Task]; !ok {
		logger.WarnContext(ctx, "unrecognized task in payload", "task", string(payload.Task))
	}
	return h.Runner.Handle(ctx, payload)
}

func main() {
	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	bootLogger.Info("dawn runner initializing (cold start)")

	cfg, err := config.LoadConfig(config.NewEnvVarProvider())
	if err != nil {
		bootLogger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg.LogLevel)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build components", "error", err)
		os.Exit(1)
	}

	clients, err := a.LoadAWS(ctx)
	if err != nil {
		logger.Error("failed to initialize AWS clients", "error", err)
		os.Exit(1)
	}

	runner, err := a.Runner(clients)
	if err != nil {
		logger.Error("failed to wire scheduled jobs", "error", err)
		os.Exit(1)
	}

	logger.Info("dawn runner initialized",
		"store", cfg.Store.Backend,
		"alerts_enabled", clients.Notifier != nil,
		"metrics_enabled", clients.Metrics != nil,
	)

	handler := &Handler{Runner: runner, Logger: logger}
	lambda.Start(handler.Handle)
}
