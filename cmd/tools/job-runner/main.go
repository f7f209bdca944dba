// Package main implements the job-runner CLI for invoking scheduled
// katabatic tasks directly, bypassing the Lambda shim.
//
// It is meant for local development, backfills and debugging. The
// configuration is read exactly as the Lambda reads it (environment, then
// .env), so pointing STORE_BACKEND at a shared store acts on real history.
//
// Usage:
//
//	go run ./cmd/tools/job-runner --task=dawn_analysis
//	go run ./cmd/tools/job-runner --task=verify_outcomes --reference-time=2026-10-18T15:00:00Z
//	go run ./cmd/tools/job-runner --dry-run --task=deduplicate
//	go run ./cmd/tools/job-runner --list
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"katabatic/internal/app"
	"katabatic/internal/config"
	"katabatic/internal/scheduler"
)

func main() {
	taskFlag := flag.String("task", "", "Task type to execute (e.g., dawn_analysis)")
	refTimeFlag := flag.String("reference-time", "", "Override reference time (RFC3339, e.g., 2026-10-18T09:00:00Z)")
	listFlag := flag.Bool("list", false, "List all available task types and exit")
	dryRunFlag := flag.Bool("dry-run", false, "Print the JSON payload without executing")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: job-runner [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Run scheduled katabatic tasks directly, bypassing Lambda.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nUse --list to see all available task types.\n")
	}
	flag.Parse()

	if *listFlag {
		printAvailableTasks(os.Stderr)
		return
	}

	payload, err := buildPayload(*taskFlag, *refTimeFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n\n", err)
		flag.Usage()
		os.Exit(1)
	}

	if *dryRunFlag {
		if err := printPayload(os.Stdout, payload); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	summary, err := execute(ctx, payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(summary)
}

// buildPayload validates the flags into a Payload.
func buildPayload(task, refTime string) (scheduler.Payload, error) {
	if task == "" {
		return scheduler.Payload{}, fmt.Errorf("--task is required")
	}
	payload := scheduler.Payload{Task: scheduler.TaskType(task)}
	if _, ok := scheduler.Tasks[payload.Task]; !ok {
		return scheduler.Payload{}, fmt.Errorf("unknown task type %q (see --list)", task)
	}
	if refTime != "" {
		t, err := time.Parse(time.RFC3339, refTime)
		if err != nil {
			return scheduler.Payload{}, fmt.Errorf("invalid --reference-time %q: expected RFC3339, e.g. 2026-10-18T09:00:00Z", refTime)
		}
		payload.ReferenceTime = &t
	}
	return payload, nil
}

// execute wires the same components as the Lambda and runs one task.
func execute(ctx context.Context, payload scheduler.Payload) (string, error) {
	cfg, err := config.LoadConfig(config.NewEnvVarProvider())
	if err != nil {
		return "", fmt.Errorf("loading configuration: %w", err)
	}
	logger := app.NewLogger(cfg.LogLevel)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return "", err
	}
	defer a.Close()

	clients, err := a.LoadAWS(ctx)
	if err != nil {
		return "", err
	}
	runner, err := a.Runner(clients)
	if err != nil {
		return "", err
	}
	return runner.Handle(ctx, payload)
}

func printAvailableTasks(w io.Writer) {
	fmt.Fprintf(w, "Available task types:\n\n")

	tasks := make([]scheduler.TaskType, 0, len(scheduler.Tasks))
	maxLen := 0
	for t := range scheduler.Tasks {
		tasks = append(tasks, t)
		maxLen = max(maxLen, len(t))
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i] < tasks[j] })

	for _, t := range tasks {
		fmt.Fprintf(w, "  %-*s  %s\n", maxLen, string(t), scheduler.Tasks[t])
	}
	fmt.Fprintln(w)
}

// printPayload writes the payload as the JSON a schedule rule would send.
func printPayload(w io.Writer, payload scheduler.Payload) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
